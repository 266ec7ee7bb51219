package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/selivandex/trendcast/internal/adapters/config"
	"github.com/selivandex/trendcast/internal/analysis"
	"github.com/selivandex/trendcast/pkg/models"
)

// stubService cans analysis responses for handler tests
type stubService struct {
	predictResult *analysis.PredictTrendsResult
	predictErr    error
	fullResult    *analysis.FullAnalysisResult
	fullErr       error
	latestTrends  []models.EmergingTrend
	latestErr     error
}

func (s *stubService) PredictTrends(_ context.Context, _ analysis.PredictTrendsRequest) (*analysis.PredictTrendsResult, error) {
	return s.predictResult, s.predictErr
}

func (s *stubService) FullAnalysis(_ context.Context, _ analysis.FullAnalysisRequest) (*analysis.FullAnalysisResult, error) {
	return s.fullResult, s.fullErr
}

func (s *stubService) LatestTrends(_ context.Context) ([]models.EmergingTrend, error) {
	return s.latestTrends, s.latestErr
}

type stubChecker struct{ err error }

func (c stubChecker) Health() error { return c.err }

func newTestServer(service AnalysisService, checkers map[string]HealthChecker) *Server {
	cfg := &config.ServerConfig{Port: 0}
	return NewServer(cfg, service, NewHub(), checkers)
}

func TestHandlePredictTrends(t *testing.T) {
	stub := &stubService{
		predictResult: &analysis.PredictTrendsResult{
			Success: true,
			Forecasts: []*models.Forecast{
				{Keyword: "ai tools", TrendDirection: models.TrendRising, Confidence: 82},
			},
		},
	}
	server := newTestServer(stub, nil)

	body, _ := json.Marshal(analysis.PredictTrendsRequest{
		Keywords: []string{"ai tools"},
		Days:     7,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict-trends", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.handlePredictTrends(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result analysis.PredictTrendsResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if !result.Success {
		t.Error("expected success flag in response envelope")
	}
	if len(result.Forecasts) != 1 || result.Forecasts[0].Keyword != "ai tools" {
		t.Errorf("unexpected response: %+v", result)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("response envelope missing success field: %s", rec.Body.String())
	}
}

func TestHandlePredictTrendsRejectsGet(t *testing.T) {
	server := newTestServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predict-trends", nil)
	rec := httptest.NewRecorder()

	server.handlePredictTrends(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandlePredictTrendsBadBody(t *testing.T) {
	server := newTestServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict-trends", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	server.handlePredictTrends(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestErrorTaxonomyMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient data", fmt.Errorf("wrapped: %w", models.ErrInsufficientData), http.StatusUnprocessableEntity},
		{"insufficient history", models.ErrInsufficientHistory, http.StatusUnprocessableEntity},
		{"insufficient videos", models.ErrInsufficientVideos, http.StatusUnprocessableEntity},
		{"timeout", models.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"computation", models.ErrComputationFailure, http.StatusInternalServerError},
		{"validation", fmt.Errorf("channel_id is required"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHandleFullAnalysisPropagatesErrorStatus(t *testing.T) {
	stub := &stubService{fullErr: models.ErrUpstreamTimeout}
	server := newTestServer(stub, nil)

	body, _ := json.Marshal(analysis.FullAnalysisRequest{ChannelID: "c1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/full-analysis", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.handleFullAnalysis(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error JSON: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestHandleFullAnalysis(t *testing.T) {
	stub := &stubService{
		fullResult: &analysis.FullAnalysisResult{
			Success:   true,
			ChannelID: "c1",
			BacktestStatus: models.BacktestStatus{
				Enabled: true,
				Status:  models.BacktestStatusSuccess,
			},
		},
	}
	server := newTestServer(stub, nil)

	body, _ := json.Marshal(analysis.FullAnalysisRequest{ChannelID: "c1", RunBacktest: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/full-analysis", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.handleFullAnalysis(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result analysis.FullAnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if !result.Success {
		t.Error("expected success flag in response envelope")
	}
	if result.BacktestStatus.Status != models.BacktestStatusSuccess {
		t.Errorf("unexpected backtest status %q", result.BacktestStatus.Status)
	}
}

func TestHandleEmergingTrends(t *testing.T) {
	t.Run("cached shortlist", func(t *testing.T) {
		stub := &stubService{
			latestTrends: []models.EmergingTrend{
				{Keyword: "ai tools", Key: "ai tools", Urgency: 85, Confidence: 78},
			},
		}
		server := newTestServer(stub, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/emerging-trends", nil)
		rec := httptest.NewRecorder()
		server.handleEmergingTrends(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var payload struct {
			EmergingTrends []models.EmergingTrend `json:"emerging_trends"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid response JSON: %v", err)
		}
		if len(payload.EmergingTrends) != 1 || payload.EmergingTrends[0].Keyword != "ai tools" {
			t.Errorf("unexpected payload: %+v", payload)
		}
	})

	t.Run("empty cache returns empty list", func(t *testing.T) {
		server := newTestServer(&stubService{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/emerging-trends", nil)
		rec := httptest.NewRecorder()
		server.handleEmergingTrends(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"emerging_trends":[]`) {
			t.Errorf("expected empty list, got %s", rec.Body.String())
		}
	})

	t.Run("rejects post", func(t *testing.T) {
		server := newTestServer(&stubService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/emerging-trends", nil)
		rec := httptest.NewRecorder()
		server.handleEmergingTrends(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("cache failure", func(t *testing.T) {
		stub := &stubService{latestErr: fmt.Errorf("redis unavailable")}
		server := newTestServer(stub, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/emerging-trends", nil)
		rec := httptest.NewRecorder()
		server.handleEmergingTrends(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := newTestServer(&stubService{}, map[string]HealthChecker{
			"postgres": stubChecker{},
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.handleHealth(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		server := newTestServer(&stubService{}, map[string]HealthChecker{
			"postgres": stubChecker{err: fmt.Errorf("connection refused")},
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.handleHealth(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}

		var payload map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid health JSON: %v", err)
		}
		if payload["status"] != "degraded" {
			t.Errorf("expected degraded status, got %v", payload["status"])
		}
	})
}
