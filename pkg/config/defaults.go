package config

// Storage providers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

const (
	defaultChatEndpoint = "http://localhost:8080/functions/v1/ai-chat"
	defaultChatTimeout  = 300

	defaultRelayListen   = ":8080"
	defaultRelayUpstream = "https://api.openai.com/v1/chat/completions"
	defaultRelayModel    = "gpt-4o-mini"
	defaultRateLimit     = 20
	defaultRateWindow    = 60
	defaultRelayWorkers  = 3

	defaultAPIListen = ":8081"

	defaultSystemPrompt = "You are EduSpark's study assistant. Help students understand " +
		"their course material with clear, encouraging explanations suited to their " +
		"education level. Prefer worked examples and short summaries."

	defaultStorageProvider = StorageMemory
	defaultObjectsBaseURL  = "/files"
	defaultKafkaTopic      = "eduspark.chat.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Chat: ChatConfig{
			Endpoint:       defaultChatEndpoint,
			TimeoutSeconds: defaultChatTimeout,
		},
		Relay: RelayConfig{
			Listen:            defaultRelayListen,
			Upstream:          defaultRelayUpstream,
			Model:             defaultRelayModel,
			SystemPrompt:      defaultSystemPrompt,
			RateLimit:         defaultRateLimit,
			RateWindowSeconds: defaultRateWindow,
			Workers:           defaultRelayWorkers,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		Objects: ObjectsConfig{
			BaseURL: defaultObjectsBaseURL,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
