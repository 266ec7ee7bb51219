package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/selivandex/trendcast/pkg/models"
)

// AlgoVersion is stamped on every forecast so stored results can be
// invalidated when the model changes, instead of guessing from values
const AlgoVersion = "2.1.0"

const (
	// minHistory is the minimum series length to fit the trend model
	minHistory = 2

	// weeklySeasonalityMin is the history needed before a weekly
	// component is estimated
	weeklySeasonalityMin = 14

	// slope thresholds on the 0-100 scale per day
	risingSlope  = 2.0
	fallingSlope = -2.0

	// zScore for ~95% prediction bounds
	zScore = 1.96

	// dataSufficiencyDays is the history length at which the data-quality
	// factor in the confidence score saturates
	dataSufficiencyDays = 90

	// holdoutDays is the in-sample validation window for model accuracy
	holdoutDays = 7
	// holdoutMin is the minimum series length before a holdout is carved out
	holdoutMin = 21
)

// Forecaster fits a linear trend plus an additive weekly seasonal
// component to a daily interest series and projects it forward with
// residual-based confidence bounds. Stateless; safe for concurrent use.
type Forecaster struct{}

// New creates a forecaster
func New() *Forecaster {
	return &Forecaster{}
}

// fit holds the fitted model for one series
type fit struct {
	slope       float64
	intercept   float64
	seasonal    [7]float64 // additive offset by weekday
	hasSeasonal bool
	residualStd float64
	n           int
}

// Forecast predicts horizonDays of interest for one keyword.
// The series must be sorted ascending by date, one point per day, values
// on the 0-100 scale. A flat series is valid input and yields a stable
// forecast with zero strength, not an error.
func (f *Forecaster) Forecast(keyword string, series []models.TimeSeriesPoint, horizonDays int) (*models.Forecast, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("horizon must be at least one day, got %d", horizonDays)
	}
	if len(series) < minHistory {
		return nil, fmt.Errorf("%w: %d points, need %d", models.ErrInsufficientHistory, len(series), minHistory)
	}

	m, err := fitModel(series)
	if err != nil {
		return nil, err
	}

	points, raw := project(m, series[len(series)-1].Date, horizonDays)

	// Direction, strength and peak come from the unclamped projection: a
	// builder-normalized series tops out at 100, and once every display
	// score clamps there the clamped points carry no slope at all
	direction, strength, slope := classifyTrend(raw, m.slope)
	confidence := predictionConfidence(points, m.n)
	peakDay, peakScore := detectPeak(raw, points)

	fc := &models.Forecast{
		Keyword:        keyword,
		HorizonDays:    horizonDays,
		Points:         points,
		TrendDirection: direction,
		TrendStrength:  strength,
		Confidence:     confidence,
		PeakDay:        peakDay,
		PeakScore:      peakScore,
		AlgoVersion:    AlgoVersion,
		GeneratedAt:    time.Now().UTC(),
	}
	fc.Summary = buildSummary(keyword, direction, strength, confidence, peakDay, slope)

	if len(series) >= holdoutMin {
		if acc, err := f.holdoutAccuracy(series); err == nil {
			fc.ModelAccuracy = acc
		}
	}

	return fc, nil
}

// fitModel fits trend and seasonality, returning ErrComputationFailure on
// a numerically broken fit rather than propagating NaNs into results
func fitModel(series []models.TimeSeriesPoint) (*fit, error) {
	n := len(series)
	values := make([]float64, n)
	for i, p := range series {
		values[i] = p.Value
	}

	slope, intercept := leastSquares(values)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) {
		return nil, fmt.Errorf("%w: degenerate least-squares fit", models.ErrComputationFailure)
	}

	m := &fit{slope: slope, intercept: intercept, n: n}

	// Weekly seasonality from trend residuals, when at least two full
	// weeks are available
	if n >= weeklySeasonalityMin {
		var sum [7]float64
		var count [7]int
		for i, p := range series {
			r := values[i] - (intercept + slope*float64(i))
			wd := int(p.Date.Weekday())
			sum[wd] += r
			count[wd]++
		}
		for wd := 0; wd < 7; wd++ {
			if count[wd] > 0 {
				m.seasonal[wd] = sum[wd] / float64(count[wd])
			}
		}
		m.hasSeasonal = true
	}

	// Residual spread drives the width of the prediction bounds
	var ss float64
	for i, p := range series {
		fitted := intercept + slope*float64(i)
		if m.hasSeasonal {
			fitted += m.seasonal[int(p.Date.Weekday())]
		}
		d := values[i] - fitted
		ss += d * d
	}
	m.residualStd = math.Sqrt(ss / float64(n))

	return m, nil
}

// project produces one ForecastPoint per horizon day with bounds widening
// as the forecast moves further from the last observation. The second
// return carries the unclamped projections, which classification and peak
// detection need after display scores saturate at 100.
func project(m *fit, lastDate time.Time, horizonDays int) ([]models.ForecastPoint, []float64) {
	points := make([]models.ForecastPoint, horizonDays)
	raws := make([]float64, horizonDays)
	for k := 1; k <= horizonDays; k++ {
		date := lastDate.AddDate(0, 0, k)
		t := float64(m.n-1) + float64(k)

		raw := m.intercept + m.slope*t
		if m.hasSeasonal {
			raw += m.seasonal[int(date.Weekday())]
		}
		raws[k-1] = raw

		// Uncertainty grows with distance from the observed window
		halfWidth := zScore * m.residualStd * math.Sqrt(1+float64(k)/float64(m.n))

		predicted := clampScore(raw)
		lower := raw - halfWidth
		upper := raw + halfWidth
		if lower > predicted {
			lower = predicted
		}
		if upper < predicted {
			upper = predicted
		}

		points[k-1] = models.ForecastPoint{
			Date:            date,
			PredictedScore:  round2(predicted),
			LowerBound:      round2(lower),
			UpperBound:      round2(upper),
			ConfidenceRange: round2(upper - lower),
		}
	}
	return points, raws
}

// classifyTrend derives direction and normalized strength from the slope
// of the unclamped projection over the horizon
func classifyTrend(raw []float64, modelSlope float64) (models.TrendDirection, float64, float64) {
	slope := modelSlope
	if len(raw) >= 2 {
		slope, _ = leastSquares(raw)
	}

	strength := math.Abs(slope) * 10
	if strength > 100 {
		strength = 100
	}

	switch {
	case slope > risingSlope:
		return models.TrendRising, round2(strength), slope
	case slope < fallingSlope:
		return models.TrendFalling, round2(strength), slope
	default:
		return models.TrendStable, round2(strength), slope
	}
}

// predictionConfidence scores the forecast 0-100 from the relative width
// of its bounds, discounted when history is short
func predictionConfidence(points []models.ForecastPoint, historyLen int) float64 {
	var widthSum, predSum float64
	for _, p := range points {
		widthSum += p.UpperBound - p.LowerBound
		predSum += p.PredictedScore
	}
	n := float64(len(points))
	avgWidth := widthSum / n
	avgPred := predSum / n

	if avgPred == 0 {
		return 50.0
	}

	relWidth := avgWidth / avgPred
	if relWidth > 1 {
		relWidth = 1
	}
	confidence := 100 * (1 - relWidth)

	quality := float64(historyLen) / dataSufficiencyDays
	if quality > 1 {
		quality = 1
	}

	return round2(confidence * quality)
}

// detectPeak finds the day of maximum projected interest, using the
// unclamped values so saturated display scores cannot fake a plateau. A
// maximum on the final day means the trend is still climbing with no
// turning point in view, so no peak is reported. The returned score is
// the clamped display value for that day.
func detectPeak(raw []float64, points []models.ForecastPoint) (*int, float64) {
	maxIdx := 0
	for i, v := range raw {
		if v > raw[maxIdx] {
			maxIdx = i
		}
	}

	score := points[maxIdx].PredictedScore
	if maxIdx == len(raw)-1 {
		return nil, score
	}

	day := maxIdx + 1
	return &day, score
}

// holdoutAccuracy refits on all but the trailing week and scores the fit
// against the held-out actuals
func (f *Forecaster) holdoutAccuracy(series []models.TimeSeriesPoint) (*models.ModelAccuracy, error) {
	train := series[:len(series)-holdoutDays]
	test := series[len(series)-holdoutDays:]

	m, err := fitModel(train)
	if err != nil {
		return nil, err
	}
	predicted, _ := project(m, train[len(train)-1].Date, holdoutDays)

	var absSum, sqSum, pctSum float64
	pctCount := 0
	for i, actual := range test {
		diff := predicted[i].PredictedScore - actual.Value
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if actual.Value != 0 {
			pctSum += math.Abs(diff / actual.Value)
			pctCount++
		}
	}

	n := float64(holdoutDays)
	acc := &models.ModelAccuracy{
		MAE:  round2(absSum / n),
		RMSE: round2(math.Sqrt(sqSum / n)),
	}
	if pctCount > 0 {
		acc.MAPE = round2(pctSum / float64(pctCount) * 100)
	}
	return acc, nil
}

// leastSquares fits y = intercept + slope*i over i = 0..n-1
func leastSquares(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, values[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func buildSummary(keyword string, direction models.TrendDirection, strength, confidence float64, peakDay *int, slope float64) string {
	var trendDesc string
	switch direction {
	case models.TrendRising:
		switch {
		case strength > 70:
			trendDesc = "climb sharply"
		case strength > 40:
			trendDesc = "rise steadily"
		default:
			trendDesc = "rise slowly"
		}
	case models.TrendFalling:
		switch {
		case strength > 70:
			trendDesc = "drop sharply"
		case strength > 40:
			trendDesc = "decline steadily"
		default:
			trendDesc = "decline slowly"
		}
	default:
		trendDesc = "hold steady"
	}

	var confDesc string
	switch {
	case confidence > 80:
		confDesc = "high confidence"
	case confidence > 60:
		confDesc = "medium confidence"
	default:
		confDesc = "low confidence"
	}

	summary := fmt.Sprintf("Interest in %q is expected to %s over the forecast window (%s)", keyword, trendDesc, confDesc)
	if peakDay != nil {
		summary += fmt.Sprintf(", peaking around day %d", *peakDay)
	}

	switch {
	case direction == models.TrendRising && confidence > 70:
		summary += ". Strong window to publish related content now."
	case direction == models.TrendRising:
		summary += ". Worth considering related content."
	case direction == models.TrendFalling:
		summary += ". Interest is cooling; consider waiting."
	}

	return summary
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
