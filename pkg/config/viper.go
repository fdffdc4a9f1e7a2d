package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eduspark/portal/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "EDUSPARK"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the EDUSPARK_ prefix. A .env file in the working directory is loaded
// into the process environment first; variables already set win.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (EDUSPARK_RELAY_LISTEN, EDUSPARK_CHAT_ENDPOINT, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper builds a Config from the merged viper view.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Chat: ChatConfig{
			Endpoint:       v.GetString("chat.endpoint"),
			APIKey:         v.GetString("chat.api_key"),
			TimeoutSeconds: v.GetUint("chat.timeout_seconds"),
		},
		Relay: RelayConfig{
			Listen:            v.GetString("relay.listen"),
			Upstream:          v.GetString("relay.upstream"),
			APIKey:            v.GetString("relay.api_key"),
			Model:             v.GetString("relay.model"),
			SystemPrompt:      v.GetString("relay.system_prompt"),
			RateLimit:         v.GetUint("relay.rate_limit"),
			RateWindowSeconds: v.GetUint("relay.rate_window_seconds"),
			Workers:           v.GetUint("relay.workers"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Objects: ObjectsConfig{
			Root:    v.GetString("objects.root"),
			BaseURL: v.GetString("objects.base_url"),
		},
		Events: EventsConfig{
			KafkaBrokers: v.GetString("events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		Auth: AuthConfig{
			AccessToken: v.GetString("auth.access_token"),
			JWTSecret:   v.GetString("auth.jwt_secret"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every key is registered, even when its default
// is empty, so AutomaticEnv can resolve it.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for _, key := range ValidConfigKeys() {
		v.SetDefault(key, configKeys[key].get(d))
	}
}
