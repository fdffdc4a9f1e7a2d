package api

import (
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"

	"github.com/eduspark/portal/pkg/storage"
)

// Server is the API server for the portal records.
type Server struct {
	config Config
	store  storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store is injected to allow sharing with the relay in `eduspark serve`.
func NewServer(config Config, store storage.Driver, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1", s.authenticate)
	v1.Get("/materials", s.handleListMaterials)
	v1.Post("/materials/downloads", s.handleTrackDownload)
	v1.Post("/materials/downloads/:id/complete", s.handleCompleteDownload)
	v1.Get("/analytics", s.handleAnalytics)
	v1.Get("/guides", s.handleListGuides)
	v1.Post("/guides/:id/feedback", s.handleGuideFeedback)
	v1.Get("/referrals", s.handleListReferrals)
	v1.Post("/referrals", s.handleGenerateReferral)
	v1.Post("/referrals/redeem", s.handleRedeemReferral)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Serve serves the API on an already bound listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting API server",
		"listen", ln.Addr().String(),
	)
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
