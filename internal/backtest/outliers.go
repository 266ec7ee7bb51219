package backtest

import (
	"fmt"
	"sort"

	"github.com/selivandex/trendcast/pkg/models"
)

// FactorScorer produces independently scored contributing factors for an
// over-performing video. Implementations must return factors sorted by
// score descending; the concrete heuristic is pluggable.
type FactorScorer interface {
	Score(video models.VideoObservation, result models.VideoBacktest, scores trendScores) []models.OutlierFactor
}

// HeuristicScorer scores a fixed factor set from the video's inferred
// trend conditions, engagement and performance ratios
type HeuristicScorer struct{}

// NewHeuristicScorer creates the default factor scorer
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score evaluates each candidate factor independently and returns the
// qualifying ones sorted by score descending
func (s *HeuristicScorer) Score(video models.VideoObservation, result models.VideoBacktest, scores trendScores) []models.OutlierFactor {
	var factors []models.OutlierFactor

	if scores.ViralPotential >= 70 {
		impact := models.ImpactHigh
		desc := fmt.Sprintf("The topic was trending at publish time (heat %.0f/100), giving the video strong tailwind", scores.ViralPotential)
		if scores.ViralPotential >= 90 {
			impact = models.ImpactVeryHigh
			desc = fmt.Sprintf("The topic was near peak internet heat (%.0f/100) when this video went out", scores.ViralPotential)
		}
		factors = append(factors, models.OutlierFactor{
			Factor:      "topic heat",
			Impact:      impact,
			Description: desc,
			Score:       scores.ViralPotential,
		})
	}

	if scores.RelevanceScore >= 80 {
		factors = append(factors, models.OutlierFactor{
			Factor:      "channel relevance",
			Impact:      models.ImpactVeryHigh,
			Description: fmt.Sprintf("Content matched the channel's core themes closely (%.0f/100), landing squarely on the existing audience", scores.RelevanceScore),
			Score:       scores.RelevanceScore,
		})
	}

	if rate := engagementRate(video); rate > 0.01 {
		score := rate * 1000
		if score > 100 {
			score = 100
		}
		factors = append(factors, models.OutlierFactor{
			Factor:      "engagement rate",
			Impact:      models.ImpactHigh,
			Description: fmt.Sprintf("Engagement rate of %.2f%% is far above the typical 0.5%%, a sign the content struck a nerve", rate*100),
			Score:       score,
		})
	}

	if result.PredictedViews > 0 && float64(result.ActualViews) > float64(result.PredictedViews)*1.2 {
		over := (float64(result.ActualViews)/float64(result.PredictedViews) - 1) * 100
		score := over
		if score > 100 {
			score = 100
		}
		factors = append(factors, models.OutlierFactor{
			Factor:      "beat the model",
			Impact:      models.ImpactHigh,
			Description: fmt.Sprintf("Actual views exceeded the model's estimate by %.0f%%, pointing at success factors the model does not capture", over),
			Score:       score,
		})
	}

	if result.OutlierRatio > 2.0 {
		score := result.OutlierRatio * 20
		if score > 100 {
			score = 100
		}
		factors = append(factors, models.OutlierFactor{
			Factor:      "period comparison",
			Impact:      models.ImpactVeryHigh,
			Description: fmt.Sprintf("Views ran %.1fx the channel's contemporaneous average, an exceptional result for that period", result.OutlierRatio),
			Score:       score,
		})
	}

	if n := len([]rune(video.Title)); n >= 30 && n <= 60 {
		factors = append(factors, models.OutlierFactor{
			Factor:      "title length",
			Impact:      models.ImpactMedium,
			Description: fmt.Sprintf("Title length of %d characters sits in the band that displays fully on mobile search results", n),
			Score:       85,
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Score > factors[j].Score
	})
	return factors
}

// engagementRate weighs comments double since a comment costs the viewer
// more than a like
func engagementRate(v models.VideoObservation) float64 {
	if v.ViewCount <= 0 {
		return 0
	}
	return float64(v.LikeCount+v.CommentCount*2) / float64(v.ViewCount)
}

// outlierSummary synthesizes a short narrative from the top factors
func outlierSummary(result models.VideoBacktest, reasons []models.OutlierFactor) string {
	summary := fmt.Sprintf("%q pulled %d views, %.1fx the contemporaneous channel average.",
		result.Title, result.ActualViews, result.OutlierRatio)
	if len(reasons) > 0 {
		summary += " Main driver: " + reasons[0].Description + "."
	}
	return summary
}
