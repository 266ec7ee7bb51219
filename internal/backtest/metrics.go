package backtest

import (
	"math"

	"github.com/selivandex/trendcast/pkg/models"
)

// Quality bands for r2_score and correlation reporting
const (
	BandExcellent        = "excellent"
	BandGood             = "good"
	BandNeedsImprovement = "needs improvement"
)

// QualityBand maps a goodness-of-fit value to its reporting band
func QualityBand(v float64) string {
	switch {
	case v > 0.7:
		return BandExcellent
	case v > 0.5:
		return BandGood
	default:
		return BandNeedsImprovement
	}
}

// accuracyMetrics computes whole-set error metrics for predicted vs
// actual views. Empty or mismatched input yields zeroed metrics.
func accuracyMetrics(predictions, actuals []float64) models.AccuracyMetrics {
	if len(predictions) == 0 || len(predictions) != len(actuals) {
		return models.AccuracyMetrics{}
	}

	n := float64(len(predictions))

	var absSum, sqSum, pctSum float64
	pctCount := 0
	for i := range predictions {
		diff := predictions[i] - actuals[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if actuals[i] != 0 {
			pctSum += math.Abs(diff / actuals[i])
			pctCount++
		}
	}

	m := models.AccuracyMetrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
	}
	if pctCount > 0 {
		m.MAPE = pctSum / float64(pctCount) * 100
	}

	// R² against actual views
	var actualMean float64
	for _, a := range actuals {
		actualMean += a
	}
	actualMean /= n

	var ssRes, ssTot float64
	for i := range actuals {
		r := actuals[i] - predictions[i]
		t := actuals[i] - actualMean
		ssRes += r * r
		ssTot += t * t
	}
	if ssTot > 0 {
		m.R2Score = 1 - ssRes/ssTot
	}

	if len(predictions) > 1 {
		m.Correlation = pearson(predictions, actuals)
	}

	return sanitize(m)
}

// pearson computes the Pearson correlation coefficient between two series
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var numerator, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		numerator += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0 // no variance, no correlation
	}
	return numerator / math.Sqrt(varX*varY)
}

// sanitize replaces NaN/Inf artifacts with zeros so metrics always
// serialize cleanly
func sanitize(m models.AccuracyMetrics) models.AccuracyMetrics {
	clean := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	m.MAE = clean(m.MAE)
	m.MAPE = clean(m.MAPE)
	m.RMSE = clean(m.RMSE)
	m.R2Score = clean(m.R2Score)
	m.Correlation = clean(m.Correlation)
	return m
}
