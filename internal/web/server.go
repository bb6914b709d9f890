// Package web serves a small JSON API for watching and pausing the
// detection loop from outside the window.
package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"liveview/internal/log"
	"liveview/internal/models"
	"liveview/processing/loop"
)

// Controller is the part of the detection loop the API drives.
type Controller interface {
	Toggle() bool
	IsRunning() bool
	Stats() loop.Stats
	Latest() []models.AggregatedEntry
}

// Server is the status API server
type Server struct {
	app  *fiber.App
	addr string
	ctrl Controller

	// OnToggle is called after a toggle request with the new running state.
	OnToggle func(running bool)
}

func NewServer(addr string, ctrl Controller) *Server {
	s := &Server{addr: addr, ctrl: ctrl}

	app := fiber.New(fiber.Config{
		AppName:               "liveview",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/detections", s.handleDetections)
	api.Post("/toggle", s.handleToggle)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

// Start blocks serving on the configured address.
func (s *Server) Start() error {
	log.Info("status api listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("status api stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
