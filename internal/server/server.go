package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/intellidex/cryptobot/internal/server/handler"
	"github.com/intellidex/cryptobot/internal/server/middleware"
	"github.com/intellidex/cryptobot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Archives is optional and only registered when object storage is enabled.
type Handlers struct {
	Health   *handler.HealthHandler
	Bots     *handler.BotsHandler
	Account  *handler.AccountHandler
	Signals  *handler.SignalsHandler
	Archives *handler.ArchivesHandler
}

// Server is the headless HTTP + WebSocket API server for the trading bots.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bot control endpoints.
	mux.HandleFunc("GET /api/bots/status", handlers.Bots.StatusAll)
	mux.HandleFunc("GET /api/bots/performance", handlers.Bots.Performance)
	mux.HandleFunc("POST /api/bots/start-all", handlers.Bots.StartAll)
	mux.HandleFunc("POST /api/bots/stop-all", handlers.Bots.StopAll)
	mux.HandleFunc("GET /api/bots/{name}/status", handlers.Bots.Status)
	mux.HandleFunc("POST /api/bots/{name}/start", handlers.Bots.Start)
	mux.HandleFunc("POST /api/bots/{name}/stop", handlers.Bots.Stop)
	mux.HandleFunc("PUT /api/bots/{name}/config", handlers.Bots.UpdateConfig)

	// Paper-trading account endpoints.
	mux.HandleFunc("GET /api/account", handlers.Account.Account)
	mux.HandleFunc("GET /api/account/trades", handlers.Account.Trades)
	mux.HandleFunc("POST /api/account/reset", handlers.Account.Reset)

	// Prediction and sentiment endpoints.
	mux.HandleFunc("GET /api/predictions", handlers.Signals.Predictions)
	mux.HandleFunc("GET /api/predictions/metrics", handlers.Signals.Metrics)
	mux.HandleFunc("GET /api/sentiment", handlers.Signals.Sentiment)

	// Archive endpoints (only when object storage is enabled).
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.List)
		mux.HandleFunc("GET /api/archives/{key...}", handlers.Archives.Download)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
