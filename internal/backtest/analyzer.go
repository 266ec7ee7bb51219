package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

const (
	// MinVideos is the minimum sample below which a backtest refuses to
	// run rather than report metrics built on noise
	MinVideos = 10

	// recentVideoCap bounds a run to the most recent uploads; newer data
	// is more representative of the channel's current audience
	recentVideoCap = 50

	// OutlierThreshold qualifies a video as an outlier relative to its
	// contemporaneous period average
	OutlierThreshold = 1.2

	// DefaultTopOutliers caps the surfaced outlier list
	DefaultTopOutliers = 5
)

// Summarizer optionally rewrites an outlier's summary with richer
// language. Failures are non-fatal; the heuristic summary stands.
type Summarizer interface {
	RefineOutlierSummary(ctx context.Context, outlier models.Outlier) (string, error)
}

// Analyzer replays the prediction model against historical videos and
// evaluates its accuracy, flagging statistically over-performing uploads
type Analyzer struct {
	predictor   *Predictor
	scorer      FactorScorer
	summarizer  Summarizer
	topOutliers int
}

// NewAnalyzer creates a backtest analyzer with the default heuristic
// factor scorer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		predictor:   NewPredictor(),
		scorer:      NewHeuristicScorer(),
		topOutliers: DefaultTopOutliers,
	}
}

// WithScorer swaps the factor scoring heuristic
func (a *Analyzer) WithScorer(scorer FactorScorer) *Analyzer {
	a.scorer = scorer
	return a
}

// WithSummarizer attaches an optional AI summary refiner
func (a *Analyzer) WithSummarizer(s Summarizer) *Analyzer {
	a.summarizer = s
	return a
}

// WithTopOutliers overrides the surfaced outlier count
func (a *Analyzer) WithTopOutliers(n int) *Analyzer {
	if n > 0 {
		a.topOutliers = n
	}
	return a
}

// Run backtests the prediction model over a channel's video history.
// Fails with models.ErrInsufficientVideos below MinVideos; a successful
// run with zero outliers is a valid, meaningful result.
func (a *Analyzer) Run(ctx context.Context, videos []models.VideoObservation, hp models.HighPerformers) (*models.BacktestResult, error) {
	if len(videos) < MinVideos {
		return nil, fmt.Errorf("%w: %d videos, need %d", models.ErrInsufficientVideos, len(videos), MinVideos)
	}

	sorted := make([]models.VideoObservation, len(videos))
	copy(sorted, videos)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
	})

	if len(sorted) > recentVideoCap {
		sorted = sorted[len(sorted)-recentVideoCap:]
	}

	logger.Info("starting backtest",
		zap.Int("videos", len(sorted)),
		zap.Int("total_supplied", len(videos)),
	)

	periods := groupByPeriod(sorted)

	results := make([]models.VideoBacktest, 0, len(sorted))
	videoByID := make(map[string]models.VideoObservation, len(sorted))
	scoresByID := make(map[string]trendScores, len(sorted))
	var predictions, actuals []float64

	for _, video := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrUpstreamTimeout, err)
		}

		result, scores := a.backtestVideo(video, hp, periods)
		results = append(results, result)
		videoByID[video.VideoID] = video
		scoresByID[video.VideoID] = scores

		if result.ActualViews > 0 {
			predictions = append(predictions, float64(result.PredictedViews))
			actuals = append(actuals, float64(result.ActualViews))
		}
	}

	metrics := accuracyMetrics(predictions, actuals)
	outliers := a.rankOutliers(ctx, results, videoByID, scoresByID)

	logger.Info("backtest completed",
		zap.Int("videos_tested", len(results)),
		zap.Float64("r2", metrics.R2Score),
		zap.String("r2_band", QualityBand(metrics.R2Score)),
		zap.Int("outliers", len(outliers)),
	)

	return &models.BacktestResult{
		TotalVideosTested: len(results),
		AccuracyMetrics:   metrics,
		TopOutliers:       outliers,
		Results:           results,
	}, nil
}

// backtestVideo scores one video against its contemporaneous baseline
func (a *Analyzer) backtestVideo(
	video models.VideoObservation,
	hp models.HighPerformers,
	periods map[string]periodStats,
) (models.VideoBacktest, trendScores) {
	periodAvg := float64(video.ViewCount)
	if p, ok := periods[periodKey(video.PublishedAt)]; ok {
		periodAvg = p.avgViews
	}

	scores := inferTrendScores(video.ViewCount, periodAvg)
	predicted := a.predictor.PredictViews(video, hp, scores, periodAvg)

	absErr := float64(predicted - video.ViewCount)
	if absErr < 0 {
		absErr = -absErr
	}
	errPct := 0.0
	if video.ViewCount > 0 {
		errPct = absErr / float64(video.ViewCount) * 100
	}

	ratio := 1.0
	if periodAvg > 0 {
		ratio = float64(video.ViewCount) / periodAvg
	}

	return models.VideoBacktest{
		VideoID:         video.VideoID,
		Title:           video.Title,
		PublishedAt:     video.PublishedAt,
		ActualViews:     video.ViewCount,
		PredictedViews:  predicted,
		PeriodAvgViews:  periodAvg,
		AbsError:        absErr,
		ErrorPercentage: errPct,
		IsOutlier:       ratio > OutlierThreshold,
		OutlierRatio:    ratio,
	}, scores
}

// rankOutliers selects the top over-performers by outlier ratio and
// attaches factor analysis. When fewer than topOutliers videos qualify,
// the best-performing videos are surfaced anyway so the report is never
// empty on a healthy channel.
func (a *Analyzer) rankOutliers(
	ctx context.Context,
	results []models.VideoBacktest,
	videoByID map[string]models.VideoObservation,
	scoresByID map[string]trendScores,
) []models.Outlier {
	qualified := make([]models.VideoBacktest, 0, len(results))
	for _, r := range results {
		if r.IsOutlier && r.ActualViews > 0 {
			qualified = append(qualified, r)
		}
	}

	pool := qualified
	if len(qualified) < a.topOutliers {
		pool = make([]models.VideoBacktest, 0, len(results))
		for _, r := range results {
			if r.ActualViews > 0 && r.OutlierRatio > 0 {
				pool = append(pool, r)
			}
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].OutlierRatio > pool[j].OutlierRatio
	})
	if len(pool) > a.topOutliers {
		pool = pool[:a.topOutliers]
	}

	outliers := make([]models.Outlier, 0, len(pool))
	for _, r := range pool {
		video := videoByID[r.VideoID]
		reasons := a.scorer.Score(video, r, scoresByID[r.VideoID])

		outlier := models.Outlier{
			VideoBacktest: r,
			Analysis: models.OutlierAnalysis{
				Summary: outlierSummary(r, reasons),
				Reasons: reasons,
			},
		}

		if a.summarizer != nil {
			if refined, err := a.summarizer.RefineOutlierSummary(ctx, outlier); err == nil && refined != "" {
				outlier.Analysis.Summary = refined
			} else if err != nil {
				logger.Warn("outlier summary refinement failed, keeping heuristic summary",
					zap.String("video_id", r.VideoID),
					zap.Error(err),
				)
			}
		}

		outliers = append(outliers, outlier)
	}
	return outliers
}

type periodStats struct {
	avgViews    float64
	medianViews float64
	count       int
}

// groupByPeriod buckets videos by publish month and computes the
// period's view statistics. The monthly bucket is the contemporaneous
// baseline outliers are judged against.
func groupByPeriod(videos []models.VideoObservation) map[string]periodStats {
	views := make(map[string][]float64)
	for _, v := range videos {
		if v.ViewCount > 0 {
			key := periodKey(v.PublishedAt)
			views[key] = append(views[key], float64(v.ViewCount))
		}
	}

	stats := make(map[string]periodStats, len(views))
	for key, vs := range views {
		sort.Float64s(vs)

		var sum float64
		for _, v := range vs {
			sum += v
		}

		median := vs[len(vs)/2]
		if len(vs)%2 == 0 {
			median = (vs[len(vs)/2-1] + vs[len(vs)/2]) / 2
		}

		stats[key] = periodStats{
			avgViews:    sum / float64(len(vs)),
			medianViews: median,
			count:       len(vs),
		}
	}
	return stats
}

func periodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
