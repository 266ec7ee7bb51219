package trends

import (
	"sort"

	"github.com/selivandex/trendcast/pkg/models"
)

const (
	// Emerging-trend qualification thresholds
	minConfidence = 70.0
	minStrength   = 50.0

	// DefaultShortlistSize caps the emerging-trends shortlist
	DefaultShortlistSize = 5
)

// Ranker turns a batch of forecasts into an ordered emerging-trends
// shortlist. Stateless.
type Ranker struct{}

// NewRanker creates a ranker
func NewRanker() *Ranker {
	return &Ranker{}
}

// Shortlist filters rising, high-confidence, high-strength forecasts and
// ranks them by urgency descending, truncated to topN. The Key field is
// the normalized keyword identity downstream consumers use to suppress
// duplicates against other recommendation lists.
func (r *Ranker) Shortlist(forecasts []*models.Forecast, topN int) []models.EmergingTrend {
	if topN <= 0 {
		topN = DefaultShortlistSize
	}

	emerging := make([]models.EmergingTrend, 0, len(forecasts))
	for _, f := range forecasts {
		if f == nil {
			continue
		}
		if f.TrendDirection != models.TrendRising {
			continue
		}
		if f.Confidence < minConfidence || f.TrendStrength <= minStrength {
			continue
		}

		emerging = append(emerging, models.EmergingTrend{
			Keyword:       f.Keyword,
			Key:           models.NormalizeKeyword(f.Keyword),
			Urgency:       Urgency(f),
			Confidence:    f.Confidence,
			TrendStrength: f.TrendStrength,
			PeakDay:       f.PeakDay,
			Summary:       f.Summary,
			Tier:          f.ConfidenceLabel(),
		})
	}

	sort.SliceStable(emerging, func(i, j int) bool {
		return emerging[i].Urgency > emerging[j].Urgency
	})

	if len(emerging) > topN {
		emerging = emerging[:topN]
	}
	return emerging
}

// Urgency scores 0-100 how soon a keyword's peak window is expected.
// A trend peaking within days outranks an equally strong one with a
// distant or absent peak; no peak at all still gets a small boost as a
// sustained climb.
func Urgency(f *models.Forecast) float64 {
	base := f.Confidence * f.TrendStrength / 100

	peakFactor := 1.1 // still climbing, no peak in view
	if f.PeakDay != nil {
		switch {
		case *f.PeakDay <= 3:
			peakFactor = 1.5
		case *f.PeakDay <= 5:
			peakFactor = 1.2
		default:
			peakFactor = 1.0
		}
	}

	urgency := base * peakFactor
	if urgency > 100 {
		urgency = 100
	}
	return urgency
}

// SortForecasts orders forecasts by confidence-weighted strength
// descending, the presentation order for prediction lists
func SortForecasts(forecasts []*models.Forecast) {
	sort.SliceStable(forecasts, func(i, j int) bool {
		return forecasts[i].Confidence*forecasts[i].TrendStrength >
			forecasts[j].Confidence*forecasts[j].TrendStrength
	})
}
