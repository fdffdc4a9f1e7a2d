package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// reads the same on "eduspark serve" and "eduspark chat".
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen       = "listen"
	FlagAPIListen    = "api-listen"
	FlagUpstream     = "upstream"
	FlagModel        = "model"
	FlagRateLimit    = "rate-limit"
	FlagWorkers      = "workers"
	FlagStorage      = "storage"
	FlagSQLite       = "sqlite"
	FlagPostgres     = "postgres"
	FlagObjectsRoot  = "objects-root"
	FlagKafkaBrokers = "kafka-brokers"
	FlagEndpoint     = "endpoint"
	FlagTimeout      = "timeout"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "relay.listen",
		Description: "Address for the chat relay to listen on",
	},
	FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for the portal API to listen on",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "relay.upstream",
		Description: "OpenAI compatible chat completions URL",
	},
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "relay.model",
		Description: "Model requested from the upstream",
	},
	FlagRateLimit: {
		Name:        "rate-limit",
		ViperKey:    "relay.rate_limit",
		Description: "Chat requests allowed per client per rate window",
	},
	FlagWorkers: {
		Name:        "workers",
		ViperKey:    "relay.workers",
		Description: "Background workers that record completed turns",
	},
	FlagStorage: {
		Name:        "storage",
		Shorthand:   "s",
		ViperKey:    "storage.provider",
		Description: "Record store provider (memory, sqlite, postgres)",
	},
	FlagSQLite: {
		Name:        "sqlite",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database file",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string",
	},
	FlagObjectsRoot: {
		Name:        "objects-root",
		ViperKey:    "objects.root",
		Description: "Directory that stores uploaded study guide files",
	},
	FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "events.kafka_brokers",
		Description: "Comma separated Kafka brokers for turn events",
	},
	FlagEndpoint: {
		Name:        "endpoint",
		Shorthand:   "e",
		ViperKey:    "chat.endpoint",
		Description: "Chat function URL",
	},
	FlagTimeout: {
		Name:        "timeout",
		ViperKey:    "chat.timeout_seconds",
		Description: "Seconds to wait for a full chat reply",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
