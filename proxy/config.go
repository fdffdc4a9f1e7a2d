package proxy

import (
	"net/http"
	"time"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the OpenAI-compatible chat completions endpoint.
	UpstreamURL string

	// APIKey authenticates the relay to the upstream.
	APIKey string

	// Model is sent with every upstream request.
	Model string

	// SystemPrompt is prepended to every conversation. Empty sends none.
	SystemPrompt string

	// RateLimit is the number of chat requests a client IP may make per
	// RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration

	// Workers is the size of the turn persistence pool.
	Workers uint

	// FilesRoot, when set, is served read-only under FilesPrefix.
	FilesRoot   string
	FilesPrefix string

	// HTTPClient overrides the upstream client.
	HTTPClient *http.Client
}
