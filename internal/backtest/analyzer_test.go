package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/selivandex/trendcast/pkg/models"
)

var baseDate = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

// makeVideos generates n videos spread weekly with steady stats
func makeVideos(n int, views int64) []models.VideoObservation {
	videos := make([]models.VideoObservation, n)
	for i := 0; i < n; i++ {
		videos[i] = models.VideoObservation{
			VideoID:      fmt.Sprintf("video-%03d", i),
			Title:        fmt.Sprintf("Weekly episode number %d of the show", i),
			PublishedAt:  baseDate.AddDate(0, 0, i*7),
			ViewCount:    views,
			LikeCount:    views / 50,
			CommentCount: views / 500,
		}
	}
	return videos
}

func testHighPerformers(views int64, total int) models.HighPerformers {
	return models.HighPerformers{
		AvgViews:    float64(views),
		MedianViews: float64(views),
		TotalVideos: total,
	}
}

func TestRunRequiresMinimumVideos(t *testing.T) {
	a := NewAnalyzer()

	videos := makeVideos(MinVideos-1, 10000)
	_, err := a.Run(context.Background(), videos, testHighPerformers(10000, len(videos)))
	if !errors.Is(err, models.ErrInsufficientVideos) {
		t.Fatalf("expected ErrInsufficientVideos, got %v", err)
	}
}

func TestRunProducesResultForUniformChannel(t *testing.T) {
	a := NewAnalyzer()

	videos := makeVideos(20, 10000)
	result, err := a.Run(context.Background(), videos, testHighPerformers(10000, 20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalVideosTested != 20 {
		t.Errorf("expected 20 videos tested, got %d", result.TotalVideosTested)
	}
	if len(result.Results) != 20 {
		t.Errorf("expected 20 per-video results, got %d", len(result.Results))
	}
	if len(result.TopOutliers) > DefaultTopOutliers {
		t.Errorf("outlier list exceeds cap: %d", len(result.TopOutliers))
	}

	// A uniform channel has no real outliers, but the report still
	// surfaces the best performers rather than coming back empty
	if len(result.TopOutliers) == 0 {
		t.Error("expected fallback outliers for uniform channel")
	}
	for _, o := range result.TopOutliers {
		if o.IsOutlier {
			t.Errorf("uniform channel video %s flagged as outlier (ratio %.2f)", o.VideoID, o.OutlierRatio)
		}
	}
}

func TestRunFlagsGenuineOutlier(t *testing.T) {
	a := NewAnalyzer()

	videos := makeVideos(15, 10000)
	// One video in the same period massively over-performs
	videos[7].VideoID = "breakout"
	videos[7].ViewCount = 100000
	videos[7].LikeCount = 4000
	videos[7].CommentCount = 800

	result, err := a.Run(context.Background(), videos, testHighPerformers(12000, 15))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.TopOutliers) == 0 {
		t.Fatal("expected at least one outlier")
	}

	top := result.TopOutliers[0]
	if top.VideoID != "breakout" {
		t.Errorf("expected breakout video first, got %s", top.VideoID)
	}
	if !top.IsOutlier {
		t.Error("breakout video not flagged as outlier")
	}
	if top.OutlierRatio <= OutlierThreshold {
		t.Errorf("breakout ratio %.2f should exceed %.1f", top.OutlierRatio, OutlierThreshold)
	}
	if len(top.Analysis.Reasons) == 0 {
		t.Error("expected contributing factors on the outlier")
	}
	if top.Analysis.Summary == "" {
		t.Error("expected a summary on the outlier")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	a := NewAnalyzer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, makeVideos(20, 10000), testHighPerformers(10000, 20))
	if !errors.Is(err, models.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestRunCapsRecentVideos(t *testing.T) {
	a := NewAnalyzer()

	videos := makeVideos(recentVideoCap+20, 10000)
	result, err := a.Run(context.Background(), videos, testHighPerformers(10000, len(videos)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalVideosTested != recentVideoCap {
		t.Errorf("expected %d videos tested, got %d", recentVideoCap, result.TotalVideosTested)
	}

	// The cap keeps the most recent uploads
	earliest := result.Results[0].PublishedAt
	for _, r := range result.Results {
		if r.PublishedAt.Before(earliest) {
			earliest = r.PublishedAt
		}
	}
	cutoff := baseDate.AddDate(0, 0, 19*7)
	if earliest.Before(cutoff) {
		t.Errorf("oldest tested video %v predates expected cutoff %v", earliest, cutoff)
	}
}

func TestQualityBands(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0.82, BandExcellent},
		{0.71, BandExcellent},
		{0.7, BandGood},
		{0.55, BandGood},
		{0.5, BandNeedsImprovement},
		{0.3, BandNeedsImprovement},
		{-0.4, BandNeedsImprovement},
	}

	for _, tt := range tests {
		if got := QualityBand(tt.value); got != tt.want {
			t.Errorf("QualityBand(%.2f) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestAccuracyMetricsPerfectPrediction(t *testing.T) {
	preds := []float64{1000, 2000, 3000, 4000}
	m := accuracyMetrics(preds, preds)

	if m.MAE != 0 {
		t.Errorf("expected MAE 0, got %.4f", m.MAE)
	}
	if m.R2Score < 0.999 {
		t.Errorf("expected R2 1, got %.4f", m.R2Score)
	}
	if m.Correlation < 0.999 {
		t.Errorf("expected correlation 1, got %.4f", m.Correlation)
	}
}

func TestAccuracyMetricsEmptyInput(t *testing.T) {
	m := accuracyMetrics(nil, nil)
	if m != (models.AccuracyMetrics{}) {
		t.Errorf("expected zeroed metrics, got %+v", m)
	}
}

func TestJitterIsDeterministic(t *testing.T) {
	a := jitter("video-abc")
	b := jitter("video-abc")
	if a != b {
		t.Errorf("jitter not deterministic: %.6f vs %.6f", a, b)
	}

	if a < 0.95 || a > 1.05 {
		t.Errorf("jitter %.4f outside 0.95-1.05", a)
	}

	if jitter("video-abc") == jitter("video-xyz") {
		t.Error("different videos should get different jitter")
	}
}

func TestInferTrendScoresScaleWithPerformance(t *testing.T) {
	hot := inferTrendScores(25000, 10000)  // ratio 2.5
	cold := inferTrendScores(10000, 10000) // ratio 1.0

	if hot.ViralPotential <= cold.ViralPotential {
		t.Errorf("hot viral %.1f should exceed cold %.1f", hot.ViralPotential, cold.ViralPotential)
	}
	if hot.MatchScore <= cold.MatchScore {
		t.Errorf("hot match %.1f should exceed cold %.1f", hot.MatchScore, cold.MatchScore)
	}

	for _, s := range []float64{hot.ViralPotential, hot.RelevanceScore, hot.PerformanceScore} {
		if s < 0 || s > 100 {
			t.Errorf("score %.1f outside 0-100", s)
		}
	}
}

func TestPredictViewsFloor(t *testing.T) {
	p := NewPredictor()

	video := models.VideoObservation{VideoID: "tiny", Title: "short"}
	got := p.PredictViews(video, models.HighPerformers{MedianViews: 100, AvgViews: 100}, inferTrendScores(50, 1000), 1000)
	if got < 500 {
		t.Errorf("prediction %d below the 500 view floor", got)
	}
}

func TestPredictViewsUsesBaseline(t *testing.T) {
	p := NewPredictor()

	video := models.VideoObservation{
		VideoID: "v1",
		Title:   "A title of a very reasonable length here",
	}
	hp := testHighPerformers(10000, 40)
	scores := inferTrendScores(10000, 10000) // neutral conditions

	got := p.PredictViews(video, hp, scores, 10000)

	// Neutral multipliers should stay within a sane band of the baseline
	if got < 3000 || got > 30000 {
		t.Errorf("prediction %d implausible for 10k baseline", got)
	}
}
