package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eduspark/portal/pkg/logger"
	"github.com/eduspark/portal/pkg/sse"
)

const (
	// DefaultTimeout bounds a whole chat turn, including the stream.
	DefaultTimeout = 5 * time.Minute

	maxErrorBody = 4 * 1024
)

// Streamer sends a history to a chat backend and streams the reply.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, onDelta func(string), onDone func()) error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Endpoint is the URL of the chat function.
	Endpoint string

	// APIKey is sent as a bearer token.
	APIKey string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client streams chat turns from the hosted chat function.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	decoder  *sse.Decoder
	logger   *slog.Logger
}

// NewClient returns a Client for cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("chat endpoint is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     httpClient,
		decoder:  sse.NewDecoder(sse.WithLogger(log)),
		logger:   log,
	}, nil
}

// Stream posts messages to the chat function and feeds the SSE reply through
// the decoder. Non-2xx responses return a *StatusError before any callback
// runs; a response without a body returns sse.ErrNoBody.
func (c *Client) Stream(ctx context.Context, messages []Message, onDelta func(string), onDone func()) error {
	body, err := json.Marshal(Request{Messages: messages})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("chat backend rejected request",
			"status", resp.StatusCode,
		)
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	res, err := c.decoder.Decode(ctx, resp.Body, onDelta, onDone)
	if err != nil {
		return err
	}

	c.logger.Debug("chat stream finished",
		"deltas", res.Deltas,
		"terminated", res.Terminated,
		"dropped", res.Dropped,
		"bytes", res.Bytes,
	)
	return nil
}
