package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent eduspark configuration stored as
// config.toml in the .eduspark/ directory.
type Config struct {
	Version int           `toml:"version"`
	Chat    ChatConfig    `toml:"chat"`
	Relay   RelayConfig   `toml:"relay"`
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Objects ObjectsConfig `toml:"objects"`
	Events  EventsConfig  `toml:"events"`
	Auth    AuthConfig    `toml:"auth"`
}

// ChatConfig holds settings for `eduspark chat`, the client side of the
// chat function.
type ChatConfig struct {
	Endpoint       string `toml:"endpoint,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	TimeoutSeconds uint   `toml:"timeout_seconds,omitempty"`
}

// RelayConfig holds settings for the chat relay started by `eduspark serve`.
type RelayConfig struct {
	Listen            string `toml:"listen,omitempty"`
	Upstream          string `toml:"upstream,omitempty"`
	APIKey            string `toml:"api_key,omitempty"`
	Model             string `toml:"model,omitempty"`
	SystemPrompt      string `toml:"system_prompt,omitempty"`
	RateLimit         uint   `toml:"rate_limit,omitempty"`
	RateWindowSeconds uint   `toml:"rate_window_seconds,omitempty"`
	Workers           uint   `toml:"workers,omitempty"`
}

// APIConfig holds settings for the portal API started by `eduspark serve`.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ObjectsConfig configures the object store used for study guide files.
type ObjectsConfig struct {
	Root    string `toml:"root,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
}

// EventsConfig configures publishing of chat turn events. Publishing is off
// when no brokers are set.
type EventsConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers returns the comma separated broker list with blanks removed.
func (e EventsConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// AuthConfig holds the signed-in session token for portal commands and the
// secret used to verify it.
type AuthConfig struct {
	AccessToken string `toml:"access_token,omitempty"`
	JWTSecret   string `toml:"jwt_secret,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"chat.endpoint":        stringKey(func(c *Config) *string { return &c.Chat.Endpoint }),
	"chat.api_key":         stringKey(func(c *Config) *string { return &c.Chat.APIKey }),
	"chat.timeout_seconds": uintKey("chat.timeout_seconds", func(c *Config) *uint { return &c.Chat.TimeoutSeconds }),

	"relay.listen":              stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.upstream":            stringKey(func(c *Config) *string { return &c.Relay.Upstream }),
	"relay.api_key":             stringKey(func(c *Config) *string { return &c.Relay.APIKey }),
	"relay.model":               stringKey(func(c *Config) *string { return &c.Relay.Model }),
	"relay.system_prompt":       stringKey(func(c *Config) *string { return &c.Relay.SystemPrompt }),
	"relay.rate_limit":          uintKey("relay.rate_limit", func(c *Config) *uint { return &c.Relay.RateLimit }),
	"relay.rate_window_seconds": uintKey("relay.rate_window_seconds", func(c *Config) *uint { return &c.Relay.RateWindowSeconds }),
	"relay.workers":             uintKey("relay.workers", func(c *Config) *uint { return &c.Relay.Workers }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case StorageMemory, StorageSQLite, StoragePostgres:
				c.Storage.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.provider: %q (available: %s, %s, %s)",
					v, StorageMemory, StorageSQLite, StoragePostgres)
			}
		},
	},
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"objects.root":     stringKey(func(c *Config) *string { return &c.Objects.Root }),
	"objects.base_url": stringKey(func(c *Config) *string { return &c.Objects.BaseURL }),

	"events.kafka_brokers": stringKey(func(c *Config) *string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic":   stringKey(func(c *Config) *string { return &c.Events.KafkaTopic }),

	"auth.access_token": stringKey(func(c *Config) *string { return &c.Auth.AccessToken }),
	"auth.jwt_secret":   stringKey(func(c *Config) *string { return &c.Auth.JWTSecret }),
}

// secretKeys are masked by `eduspark config list`.
var secretKeys = map[string]bool{
	"chat.api_key":      true,
	"relay.api_key":     true,
	"auth.access_token": true,
	"auth.jwt_secret":   true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
