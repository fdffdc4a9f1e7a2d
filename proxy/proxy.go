// Package proxy provides the chat relay the portal's chat client talks to. It
// forwards conversations to an OpenAI-compatible upstream, streams the reply
// back verbatim and records each completed turn through its worker pool.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"

	"github.com/eduspark/portal/pkg/chat"
	"github.com/eduspark/portal/pkg/eventstream"
	"github.com/eduspark/portal/pkg/sse"
	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/proxy/header"
	"github.com/eduspark/portal/proxy/worker"
)

// ChatPath is the route the portal chat client posts to.
const ChatPath = "/functions/v1/ai-chat"

const (
	msgRateLimited   = "Rate limits exceeded, please try again later."
	msgPaymentNeeded = "Payment required, please add funds to your workspace."
	msgGatewayError  = "AI gateway error"

	maxErrorBody = 4 << 10
)

// ErrorResponse is the JSON body of every relay error.
type ErrorResponse struct {
	Error string `json:"error"`
}

type upstreamRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// Proxy is the chat relay server.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
	decoder       *sse.Decoder

	// streams tracks relayStream goroutines so Close drains them before the
	// worker pool.
	streams sync.WaitGroup
}

// New creates a new Proxy. Completed turns are written to driver and
// announced on publisher.
func New(config Config, driver storage.Driver, publisher eventstream.Publisher, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if config.Model == "" {
		return nil, errors.New("model is required")
	}

	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  publisher,
		NumWorkers: config.Workers,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// Replies stream for as long as the model writes.
			Timeout: chat.DefaultTimeout,
		}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		logger:        logger,
		httpClient:    httpClient,
		server:        app,
		headerHandler: header.NewHandler(),
		decoder:       sse.NewDecoder(sse.WithLogger(logger)),
	}

	app.Use(cors.New(cors.Config{
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers := []fiber.Handler{}
	if config.RateLimit > 0 {
		handlers = append(handlers, limiter.New(limiter.Config{
			Max:        config.RateLimit,
			Expiration: config.RateWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: msgRateLimited})
			},
		}))
	}
	handlers = append(handlers, p.handleChat)
	app.Post(ChatPath, handlers...)

	if config.FilesRoot != "" {
		prefix := config.FilesPrefix
		if prefix == "" {
			prefix = "/files"
		}
		files := app.Group(prefix, compress.New())
		files.Static("/", config.FilesRoot, fiber.Static{Browse: false})
	}

	return p, nil
}

// Run starts the relay on the configured listen address.
func (p *Proxy) Run() error {
	p.logger.Info("starting chat relay",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
		"model", p.config.Model,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the relay using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting chat relay",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
		"model", p.config.Model,
	)

	return p.server.Listener(listener)
}

// Close shuts the server down and waits for the worker pool to drain.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.streams.Wait()
	p.workerPool.Close()
	return err
}

// handleChat validates the conversation, forwards it upstream and streams the
// reply back.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req chat.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "request body must be JSON"})
	}
	if err := validateMessages(req.Messages); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	messages := make([]chat.Message, 0, len(req.Messages)+1)
	if p.config.SystemPrompt != "" {
		messages = append(messages, chat.Message{Role: chat.RoleSystem, Content: p.config.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(upstreamRequest{Model: p.config.Model, Messages: messages, Stream: true})
	if err != nil {
		p.logger.Error("encoding upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgGatewayError})
	}

	// fasthttp recycles its RequestCtx when the handler returns, while the
	// upstream body is still being streamed from another goroutine.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, p.config.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgGatewayError})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	p.logger.Debug("forwarding chat to upstream",
		"url", p.config.UpstreamURL,
		"message_count", len(messages),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msgGatewayError})
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
		status, msg := clientError(httpResp.StatusCode)
		return c.Status(status).JSON(ErrorResponse{Error: msg})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe gives per-chunk flushing: pw.Write blocks until fasthttp's
	// chunked writer has consumed the bytes and pushed them to the socket.
	pr, pw := io.Pipe()
	p.streams.Add(1)
	go p.relayStream(httpResp, pw, messages, startTime)

	// Unknown size (-1) makes fasthttp use chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayStream copies the upstream body to pw while the decoder reads the
// same bytes to rebuild the reply.
func (p *Proxy) relayStream(httpResp *http.Response, pw *io.PipeWriter, messages []chat.Message, startTime time.Time) {
	defer p.streams.Done()
	defer httpResp.Body.Close()

	var reply strings.Builder
	tee := io.TeeReader(httpResp.Body, pw)

	result, err := p.decoder.Decode(context.Background(), tee,
		func(delta string) { reply.WriteString(delta) },
		func() {},
	)
	if err != nil {
		p.logger.Error("relaying chat stream", "error", err)
		pw.CloseWithError(err)
		return
	}

	// Anything the upstream sends after the sentinel still goes to the client.
	if _, err := io.Copy(pw, httpResp.Body); err != nil {
		p.logger.Warn("forwarding stream tail", "error", err)
	}
	pw.Close()

	duration := time.Since(startTime)
	p.logger.Debug("streaming complete",
		"deltas", result.Deltas,
		"dropped", result.Dropped,
		"terminated", result.Terminated,
		"duration", duration,
	)

	p.workerPool.Enqueue(worker.Job{
		TurnID:    uuid.NewString(),
		Model:     p.config.Model,
		Messages:  messages,
		Reply:     reply.String(),
		Result:    result,
		StartedAt: startTime,
		Duration:  duration,
	})
}

func validateMessages(messages []chat.Message) error {
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("messages[%d]: role must be user or assistant", i)
		}
	}
	return nil
}

// clientError maps an upstream failure status to the relay's response.
func clientError(status int) (int, string) {
	switch status {
	case http.StatusTooManyRequests:
		return fiber.StatusTooManyRequests, msgRateLimited
	case http.StatusPaymentRequired:
		return fiber.StatusPaymentRequired, msgPaymentNeeded
	default:
		return fiber.StatusInternalServerError, msgGatewayError
	}
}
