// Package api exposes the tracker over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gmsas95/caretrack/internal/config"
	"github.com/gmsas95/caretrack/internal/notify"
	"github.com/gmsas95/caretrack/internal/session"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Server handles HTTP API and WebSocket
type Server struct {
	app     *fiber.App
	config  *config.Config
	session *session.Session
	hub     *notify.Hub
	logger  *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, sess *session.Session, hub *notify.Hub, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	s := &Server{
		app:     app,
		config:  cfg,
		session: sess,
		hub:     hub,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// App returns the underlying fiber app, used by tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
