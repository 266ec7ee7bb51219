package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/adapters/config"
	"github.com/selivandex/trendcast/pkg/logger"
)

// Server is the HTTP front of the analysis service
type Server struct {
	server   *http.Server
	service  AnalysisService
	hub      *Hub
	checkers map[string]HealthChecker
}

// NewServer wires routes and creates the HTTP server
func NewServer(cfg *config.ServerConfig, service AnalysisService, hub *Hub, checkers map[string]HealthChecker) *Server {
	if hub == nil {
		hub = NewHub()
	}
	if checkers == nil {
		checkers = make(map[string]HealthChecker)
	}

	s := &Server{
		service:  service,
		hub:      hub,
		checkers: checkers,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/predict-trends", s.handlePredictTrends)
	mux.HandleFunc("/api/v1/full-analysis", s.handleFullAnalysis)
	mux.HandleFunc("/api/v1/emerging-trends", s.handleEmergingTrends)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth) // Alias
	mux.HandleFunc("/ws/trends", s.hub.ServeWS)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Hub returns the websocket hub for wiring into the service
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	logger.Info("http server starting",
		zap.String("addr", s.server.Addr),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes subscriber connections
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("http server shutting down")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
