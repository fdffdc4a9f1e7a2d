// Package configcmder provides the config command for managing persistent
// eduspark configuration stored in the .eduspark/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent eduspark configuration.

Configuration is stored as config.toml in the .eduspark/ directory and provides
default values for command flags. Environment variables prefixed with
EDUSPARK_ override the file, and CLI flags always take precedence.

Keys use dotted notation matching the TOML section structure:
  chat.endpoint, chat.api_key, chat.timeout_seconds,
  relay.listen, relay.upstream, relay.api_key, relay.model,
  relay.system_prompt, relay.rate_limit, relay.rate_window_seconds, relay.workers,
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  objects.root, objects.base_url,
  events.kafka_brokers, events.kafka_topic,
  auth.access_token, auth.jwt_secret

Use subcommands to get, set, or list configuration values:
  eduspark config set <key> <value>    Set a configuration value
  eduspark config get <key>            Get a configuration value
  eduspark config list                 List all configuration values

Examples:
  eduspark config set relay.model gpt-4o-mini
  eduspark config set storage.provider sqlite
  eduspark config get chat.endpoint
  eduspark config list`

const configShortDesc string = "Manage persistent eduspark configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
