package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/selivandex/trendcast/pkg/models"
)

var seriesStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(values []float64) []models.TimeSeriesPoint {
	series := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		series[i] = models.TimeSeriesPoint{
			Date:  seriesStart.AddDate(0, 0, i),
			Value: v,
		}
	}
	return series
}

func TestForecastRisingSeries(t *testing.T) {
	f := New()

	series := makeSeries([]float64{10, 12, 11, 15, 18, 20, 25, 30, 28, 35, 40, 38, 45, 50})
	horizon := 7

	fc, err := f.Forecast("ai tools", series, horizon)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if fc.TrendDirection != models.TrendRising {
		t.Errorf("expected rising trend, got %s", fc.TrendDirection)
	}
	if fc.TrendStrength <= 0 {
		t.Errorf("expected positive strength, got %.2f", fc.TrendStrength)
	}
	if fc.Confidence < 0 || fc.Confidence > 100 {
		t.Errorf("confidence %.2f outside 0-100", fc.Confidence)
	}
	if len(fc.Points) != horizon {
		t.Fatalf("expected %d points, got %d", horizon, len(fc.Points))
	}
	if fc.AlgoVersion != AlgoVersion {
		t.Errorf("expected algo version %s, got %s", AlgoVersion, fc.AlgoVersion)
	}
	if fc.Summary == "" {
		t.Error("expected a non-empty summary")
	}
	if fc.PeakDay != nil && (*fc.PeakDay < 1 || *fc.PeakDay > horizon) {
		t.Errorf("peak day %d outside horizon", *fc.PeakDay)
	}
}

func TestForecastPointInvariants(t *testing.T) {
	f := New()

	series := makeSeries([]float64{20, 25, 22, 30, 35, 33, 40, 45, 42, 50, 55, 52, 60, 65, 62, 70, 75, 72, 80, 85})

	fc, err := f.Forecast("test", series, 7)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	lastDate := series[len(series)-1].Date
	for i, p := range fc.Points {
		wantDate := lastDate.AddDate(0, 0, i+1)
		if !p.Date.Equal(wantDate) {
			t.Errorf("point %d date %v, want %v", i, p.Date, wantDate)
		}
		if p.PredictedScore < 0 || p.PredictedScore > 100 {
			t.Errorf("point %d predicted %.2f outside 0-100", i, p.PredictedScore)
		}
		if p.LowerBound > p.PredictedScore {
			t.Errorf("point %d lower bound %.2f above predicted %.2f", i, p.LowerBound, p.PredictedScore)
		}
		if p.UpperBound < p.PredictedScore {
			t.Errorf("point %d upper bound %.2f below predicted %.2f", i, p.UpperBound, p.PredictedScore)
		}
	}

	// Uncertainty must not shrink as the horizon extends
	first := fc.Points[0].ConfidenceRange
	last := fc.Points[len(fc.Points)-1].ConfidenceRange
	if last < first {
		t.Errorf("bounds narrowed over horizon: day 1 range %.2f, day 7 range %.2f", first, last)
	}
}

func TestForecastFlatSeries(t *testing.T) {
	f := New()

	values := make([]float64, 30)
	for i := range values {
		values[i] = 50
	}

	fc, err := f.Forecast("steady", makeSeries(values), 7)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if fc.TrendDirection != models.TrendStable {
		t.Errorf("expected stable trend for flat series, got %s", fc.TrendDirection)
	}
	if fc.TrendStrength > 1 {
		t.Errorf("expected near-zero strength for flat series, got %.2f", fc.TrendStrength)
	}
}

func TestForecastFallingSeries(t *testing.T) {
	f := New()

	values := make([]float64, 20)
	for i := range values {
		values[i] = 95 - float64(i)*4
	}

	fc, err := f.Forecast("fading", makeSeries(values), 7)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if fc.TrendDirection != models.TrendFalling {
		t.Errorf("expected falling trend, got %s", fc.TrendDirection)
	}
}

func TestForecastInsufficientHistory(t *testing.T) {
	f := New()

	_, err := f.Forecast("x", makeSeries([]float64{42}), 7)
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	f := New()

	if _, err := f.Forecast("x", makeSeries([]float64{1, 2, 3}), 0); err == nil {
		t.Fatal("expected error for zero horizon")
	}
}

func TestPeakOnLastDayMeansNoPeak(t *testing.T) {
	// A strictly rising forecast has its maximum on the final day, which
	// is a climb still in progress, not a peak
	raw := []float64{10, 20, 30}
	points := []models.ForecastPoint{
		{PredictedScore: 10},
		{PredictedScore: 20},
		{PredictedScore: 30},
	}
	peak, score := detectPeak(raw, points)
	if peak != nil {
		t.Errorf("expected no peak, got day %d", *peak)
	}
	if score != 30 {
		t.Errorf("expected peak score 30, got %.2f", score)
	}
}

func TestPeakInMiddle(t *testing.T) {
	raw := []float64{10, 40, 20}
	points := []models.ForecastPoint{
		{PredictedScore: 10},
		{PredictedScore: 40},
		{PredictedScore: 20},
	}
	peak, score := detectPeak(raw, points)
	if peak == nil || *peak != 2 {
		t.Fatalf("expected peak on day 2, got %v", peak)
	}
	if score != 40 {
		t.Errorf("expected peak score 40, got %.2f", score)
	}
}

func TestPeakAboveClampStillOnLastDay(t *testing.T) {
	// All three days clamp to a display score of 100, but the projection
	// keeps climbing; equal display values must not fake a day-1 peak
	raw := []float64{104, 108, 112}
	points := []models.ForecastPoint{
		{PredictedScore: 100},
		{PredictedScore: 100},
		{PredictedScore: 100},
	}
	peak, score := detectPeak(raw, points)
	if peak != nil {
		t.Errorf("expected no peak for a climb past the scale ceiling, got day %d", *peak)
	}
	if score != 100 {
		t.Errorf("expected clamped peak score 100, got %.2f", score)
	}
}

func TestForecastNormalizedRisingSeries(t *testing.T) {
	// The signal builder normalizes every series so its maximum is 100,
	// and for a rising keyword that maximum is the last observed day. The
	// projection then saturates the 0-100 scale immediately; the trend
	// must still read as rising with no false peak.
	f := New()

	series := makeSeries([]float64{20, 24, 22, 30, 36, 40, 50, 60, 56, 70, 80, 76, 90, 100})

	fc, err := f.Forecast("breakout", series, 7)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if fc.TrendDirection != models.TrendRising {
		t.Fatalf("expected rising trend for max-normalized series, got %s (strength %.2f)", fc.TrendDirection, fc.TrendStrength)
	}
	if fc.TrendStrength <= 0 {
		t.Errorf("expected positive strength, got %.2f", fc.TrendStrength)
	}
	if fc.PeakDay != nil {
		t.Errorf("expected nil peak for a monotonic climb, got day %d", *fc.PeakDay)
	}
	for i, p := range fc.Points {
		if p.PredictedScore > 100 {
			t.Errorf("point %d display score %.2f above scale ceiling", i, p.PredictedScore)
		}
	}
}

func TestHoldoutAccuracyPresentWithEnoughHistory(t *testing.T) {
	f := New()

	values := make([]float64, 30)
	for i := range values {
		values[i] = 10 + float64(i)*2
	}

	fc, err := f.Forecast("long-history", makeSeries(values), 7)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if fc.ModelAccuracy == nil {
		t.Fatal("expected model accuracy with 30 days of history")
	}
	if fc.ModelAccuracy.MAE < 0 || fc.ModelAccuracy.RMSE < 0 {
		t.Errorf("negative error metrics: %+v", fc.ModelAccuracy)
	}
}

func TestLeastSquares(t *testing.T) {
	slope, intercept := leastSquares([]float64{2, 4, 6, 8})
	if slope < 1.99 || slope > 2.01 {
		t.Errorf("expected slope 2, got %.4f", slope)
	}
	if intercept < 1.99 || intercept > 2.01 {
		t.Errorf("expected intercept 2, got %.4f", intercept)
	}
}
