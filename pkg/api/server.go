// Package api exposes the HTTP surface: tool invocation, the command
// surface, stats, and health. Handlers are thin; policy lives in the
// broker and dispatcher.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dope-context/dope/pkg/broker"
	"github.com/dope-context/dope/pkg/commands"
	"github.com/dope-context/dope/pkg/database"
)

// Server is the HTTP API server.
type Server struct {
	broker     *broker.Broker
	dispatcher *commands.Dispatcher
	dbClient   *database.Client

	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the server and its routes.
func NewServer(addr string, brk *broker.Broker, dispatcher *commands.Dispatcher, dbClient *database.Client) *Server {
	s := &Server{
		broker:     brk,
		dispatcher: dispatcher,
		dbClient:   dbClient,
		logger:     slog.Default(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger))

	engine.GET("/health", s.handleHealth)
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/invoke", s.handleInvoke)
		v1.POST("/commands/:name", s.handleCommand)
		v1.GET("/stats", s.handleStats)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request in the structured log.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
