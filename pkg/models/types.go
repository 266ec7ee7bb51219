package models

import (
	"strings"
	"time"
)

// TrendDirection classifies the fitted slope of a forecast
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// ConfidenceTier is a display label derived from forecast confidence
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// ImpactTier grades how much a factor contributed to an outlier video
type ImpactTier string

const (
	ImpactLow      ImpactTier = "low"
	ImpactMedium   ImpactTier = "medium"
	ImpactHigh     ImpactTier = "high"
	ImpactVeryHigh ImpactTier = "very_high"
)

// TimeSeriesPoint is one day of aggregated interest signal for a keyword.
// Series are sorted ascending by date with at most one point per date.
type TimeSeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// VideoObservation is a single video's raw stats as supplied by the
// channel metadata collector
type VideoObservation struct {
	VideoID      string    `json:"videoId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
	ViewCount    int64     `json:"viewCount"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
}

// InterestSample is an external search/social interest reading for a keyword
type InterestSample struct {
	Date   time.Time `json:"date"`
	Score  float64   `json:"score"`
	Source string    `json:"source"`
}

// SocialTrend is a social-platform trend reading passed through from the
// collector; the engine echoes it in analysis envelopes without scoring it
type SocialTrend struct {
	Keyword  string  `json:"keyword"`
	Platform string  `json:"platform"`
	Score    float64 `json:"score"`
}

// ChannelData holds channel-level stats passed through from the collector
type ChannelData struct {
	ChannelID       string `json:"channelId"`
	Title           string `json:"title"`
	SubscriberCount int64  `json:"subscriberCount"`
	VideoCount      int64  `json:"videoCount"`
	ViewCount       int64  `json:"viewCount"`
}

// HighPerformers summarizes a channel's strongest videos, used as the
// prediction baseline in backtesting
type HighPerformers struct {
	AvgViews    float64 `json:"avg_views"`
	MedianViews float64 `json:"median_views"`
	TotalVideos int     `json:"total_videos"`
}

// ForecastPoint is one day of a forecast with confidence bounds
type ForecastPoint struct {
	Date            time.Time `json:"date"`
	PredictedScore  float64   `json:"predicted_score"`
	LowerBound      float64   `json:"lower_bound"`
	UpperBound      float64   `json:"upper_bound"`
	ConfidenceRange float64   `json:"confidence_range"`
}

// ModelAccuracy holds in-sample holdout error metrics for a fitted model
type ModelAccuracy struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// Forecast is a multi-day trend prediction for one keyword.
// Immutable once produced; a refresh creates a new Forecast with a newer
// AlgoVersion rather than mutating the stored one.
type Forecast struct {
	Keyword        string         `json:"keyword"`
	HorizonDays    int            `json:"horizon_days"`
	Points         []ForecastPoint `json:"predictions"`
	TrendDirection TrendDirection `json:"trend_direction"`
	TrendStrength  float64        `json:"trend_strength"`
	Confidence     float64        `json:"confidence"`
	PeakDay        *int           `json:"peak_day"`
	PeakScore      float64        `json:"peak_score"`
	Summary        string         `json:"summary"`
	ModelAccuracy  *ModelAccuracy `json:"model_accuracy,omitempty"`
	AlgoVersion    string         `json:"algo_version"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// ConfidenceLabel returns the display tier for this forecast's confidence.
// Labeling only, never used for filtering.
func (f *Forecast) ConfidenceLabel() ConfidenceTier {
	switch {
	case f.Confidence >= 80:
		return ConfidenceHigh
	case f.Confidence >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// EmergingTrend is a ranked shortlist entry derived from a Forecast
type EmergingTrend struct {
	Keyword       string         `json:"keyword"`
	Key           string         `json:"key"`
	Urgency       float64        `json:"urgency"`
	Confidence    float64        `json:"confidence"`
	TrendStrength float64        `json:"trend_strength"`
	PeakDay       *int           `json:"peak_day"`
	Summary       string         `json:"summary"`
	Tier          ConfidenceTier `json:"confidence_tier"`
}

// NormalizeKeyword produces the stable, case-insensitive identity used to
// de-duplicate a keyword across trend and recommendation lists
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.Join(strings.Fields(keyword), " "))
}

// VideoBacktest is the per-video comparison of predicted vs actual views
type VideoBacktest struct {
	VideoID         string    `json:"video_id"`
	Title           string    `json:"title"`
	PublishedAt     time.Time `json:"published_at"`
	ActualViews     int64     `json:"actual_views"`
	PredictedViews  int64     `json:"predicted_views"`
	PeriodAvgViews  float64   `json:"period_avg_views"`
	AbsError        float64   `json:"error"`
	ErrorPercentage float64   `json:"error_percentage"`
	IsOutlier       bool      `json:"is_outlier"`
	OutlierRatio    float64   `json:"outlier_ratio"`
}

// OutlierFactor is one independently scored contributor to an outlier video
type OutlierFactor struct {
	Factor      string     `json:"factor"`
	Impact      ImpactTier `json:"impact"`
	Description string     `json:"description"`
	Score       float64    `json:"score"`
}

// OutlierAnalysis explains why a video beat its contemporaneous baseline
type OutlierAnalysis struct {
	Summary string          `json:"summary"`
	Reasons []OutlierFactor `json:"reasons"`
}

// Outlier is a historical video that substantially over-performed its
// period baseline, with an attached factor analysis
type Outlier struct {
	VideoBacktest
	Analysis OutlierAnalysis `json:"analysis"`
}

// AccuracyMetrics are whole-set error metrics of a backtest run
type AccuracyMetrics struct {
	MAE         float64 `json:"mae"`
	MAPE        float64 `json:"mape"`
	RMSE        float64 `json:"rmse"`
	R2Score     float64 `json:"r2_score"`
	Correlation float64 `json:"correlation"`
}

// BacktestResult is the full output of one backtest run
type BacktestResult struct {
	TotalVideosTested int             `json:"total_videos_tested"`
	AccuracyMetrics   AccuracyMetrics `json:"accuracy_metrics"`
	TopOutliers       []Outlier       `json:"top_outliers"`
	Results           []VideoBacktest `json:"backtest_results,omitempty"`
}

// Backtest run statuses surfaced to callers. "not_run" with
// meets_requirements=false is distinct from a run that found zero outliers.
const (
	BacktestStatusSuccess            = "success"
	BacktestStatusInsufficientVideos = "insufficient_videos"
	BacktestStatusNotRun             = "not_run"
	BacktestStatusTimeout            = "timeout"
	BacktestStatusError              = "error"
	BacktestStatusDisabled           = "disabled"
)

// BacktestStatus reports whether and how a backtest ran
type BacktestStatus struct {
	Enabled           bool   `json:"enabled"`
	VideoCount        int    `json:"video_count"`
	MeetsRequirements bool   `json:"meets_requirements"`
	Status            string `json:"status"`
	VideosTested      int    `json:"videos_tested,omitempty"`
	Error             string `json:"error,omitempty"`
}
