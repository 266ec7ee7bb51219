package analysis

import (
	"github.com/selivandex/trendcast/pkg/models"
)

// PredictTrendsRequest asks for forecasts on a batch of keywords
type PredictTrendsRequest struct {
	ChannelID string                             `json:"channel_id"`
	Keywords  []string                           `json:"keywords"`
	Days      int                                `json:"days"`
	Samples   map[string][]models.InterestSample `json:"samples,omitempty"`
}

// KeywordFailure explains why one keyword produced no forecast while the
// batch as a whole succeeded
type KeywordFailure struct {
	Keyword string `json:"keyword"`
	Reason  string `json:"reason"`
}

// PredictTrendsResult is the typed outcome of a batch forecast run.
// Success is true whenever the batch itself ran; per-keyword problems
// land in Failed. Forecasts are sorted by confidence-weighted strength.
type PredictTrendsResult struct {
	Success   bool                   `json:"success"`
	Forecasts []*models.Forecast     `json:"predictions"`
	Emerging  []models.EmergingTrend `json:"emerging_trends"`
	FromStore []string               `json:"served_from_store,omitempty"`
	Failed    []KeywordFailure       `json:"failed,omitempty"`
}

// Recommendation is an actionable content suggestion derived from a
// forecast. Key carries the normalized keyword identity used to suppress
// entries already present on the emerging shortlist.
type Recommendation struct {
	Keyword    string  `json:"keyword"`
	Key        string  `json:"key"`
	Action     string  `json:"action"`
	Urgency    float64 `json:"urgency"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// FullAnalysisRequest bundles everything known about a channel for one
// combined forecast + backtest pass
type FullAnalysisRequest struct {
	ChannelID    string                             `json:"channel_id"`
	Channel      models.ChannelData                 `json:"channel"`
	Videos       []models.VideoObservation          `json:"videos"`
	Keywords     []string                           `json:"keywords"`
	Days         int                                `json:"days"`
	Samples      map[string][]models.InterestSample `json:"samples,omitempty"`
	SocialTrends []models.SocialTrend               `json:"social_trends,omitempty"`
	RunBacktest  bool                               `json:"run_backtest"`
}

// ChannelAnalysis echoes the channel stats supplied by the collector next
// to the high-performer baseline derived from them
type ChannelAnalysis struct {
	Channel        models.ChannelData    `json:"channel"`
	HighPerformers models.HighPerformers `json:"high_performers"`
}

// FullAnalysisResult is the combined outcome. Backtest is nil whenever
// BacktestStatus.Status is anything but success. SocialTrends are echoed
// from the request so the caller gets one self-contained envelope.
type FullAnalysisResult struct {
	Success         bool                   `json:"success"`
	ChannelID       string                 `json:"channel_id"`
	ChannelAnalysis ChannelAnalysis        `json:"channel_analysis"`
	Predictions     *PredictTrendsResult   `json:"trend_predictions"`
	Backtest        *models.BacktestResult `json:"backtest,omitempty"`
	BacktestStatus  models.BacktestStatus  `json:"backtest_status"`
	Recommendations []Recommendation       `json:"recommendations"`
	SocialTrends    []models.SocialTrend   `json:"social_trends"`
}
