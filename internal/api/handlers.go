package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/analysis"
	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

// AnalysisService is the surface handlers need from the analysis core
type AnalysisService interface {
	PredictTrends(ctx context.Context, req analysis.PredictTrendsRequest) (*analysis.PredictTrendsResult, error)
	FullAnalysis(ctx context.Context, req analysis.FullAnalysisRequest) (*analysis.FullAnalysisResult, error)
	LatestTrends(ctx context.Context) ([]models.EmergingTrend, error)
}

// HealthChecker reports readiness of one dependency
type HealthChecker interface {
	Health() error
}

type errorResponse struct {
	Error string `json:"error"`
}

// handlePredictTrends serves POST /api/v1/predict-trends
func (s *Server) handlePredictTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analysis.PredictTrendsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.service.PredictTrends(r.Context(), req)
	if err != nil {
		status := statusForError(err)
		logger.Warn("predict-trends request failed",
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleFullAnalysis serves POST /api/v1/full-analysis
func (s *Server) handleFullAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analysis.FullAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.service.FullAnalysis(r.Context(), req)
	if err != nil {
		status := statusForError(err)
		logger.Warn("full-analysis request failed",
			zap.String("channel_id", req.ChannelID),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleEmergingTrends serves GET /api/v1/emerging-trends from the
// shortlist cache; an empty list means no recent batch
func (s *Server) handleEmergingTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	trends, err := s.service.LatestTrends(r.Context())
	if err != nil {
		logger.Warn("emerging-trends lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trends == nil {
		trends = []models.EmergingTrend{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emerging_trends": trends,
	})
}

// handleHealth serves GET /health: liveness plus dependency readiness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checkers))
	healthy := true
	for name, checker := range s.checkers {
		if err := checker.Health(); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":      state,
		"checks":      checks,
		"subscribers": s.hub.Subscribers(),
	})
}

// statusForError maps the analysis failure taxonomy onto HTTP codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, models.ErrInsufficientHistory),
		errors.Is(err, models.ErrInsufficientVideos):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUpstreamTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrComputationFailure):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
