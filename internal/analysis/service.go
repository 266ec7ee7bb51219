package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/adapters/storage"
	"github.com/selivandex/trendcast/internal/backtest"
	"github.com/selivandex/trendcast/internal/forecast"
	"github.com/selivandex/trendcast/internal/signal"
	"github.com/selivandex/trendcast/internal/trends"
	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/metrics"
	"github.com/selivandex/trendcast/pkg/models"
)

// keywordConcurrency bounds parallel per-keyword computations in a batch
const keywordConcurrency = 4

// Store is the persistence surface the service needs
type Store interface {
	SaveInterestSamples(ctx context.Context, keyword string, samples []models.InterestSample) error
	GetInterestSamples(ctx context.Context, keyword string, since time.Time) ([]models.InterestSample, error)
	SavePrediction(ctx context.Context, channelID string, forecast *models.Forecast, urgency float64) error
	GetPrediction(ctx context.Context, channelID, keyword string) (*models.Forecast, error)
	SaveBacktest(ctx context.Context, channelID string, result *models.BacktestResult) error
}

// AlertSink pushes urgent-trend notifications. Sends are fire-and-forget.
type AlertSink interface {
	UrgencyThreshold() float64
	NotifyTrend(keyword string, urgency, confidence float64, peakDay *int, summary string)
}

// Broadcaster fans freshly ranked trends out to live subscribers
type Broadcaster interface {
	BroadcastTrends(trends []models.EmergingTrend)
}

// TrendCache keeps the most recent shortlist readable without recomputation
type TrendCache interface {
	PutShortlist(ctx context.Context, trends []models.EmergingTrend) error
	GetShortlist(ctx context.Context) ([]models.EmergingTrend, bool, error)
}

// Settings are the tunable analysis parameters
type Settings struct {
	DefaultHorizonDays int
	MaxHorizonDays     int
	HistoryWindowDays  int
	KeywordTimeout     time.Duration
	AnalysisTimeout    time.Duration
	ShortlistSize      int
	BacktestEnabled    bool
	BacktestTimeout    time.Duration
}

// Service orchestrates the full pipeline: signal building, forecasting,
// trend ranking, backtesting, persistence and fan-out
type Service struct {
	builder    *signal.Builder
	forecaster *forecast.Forecaster
	ranker     *trends.Ranker
	analyzer   *backtest.Analyzer
	coalescer  *Coalescer
	store      Store
	buffer     metrics.Buffer
	alerts     AlertSink
	broadcast  Broadcaster
	cache      TrendCache
	settings   Settings
}

// Deps wires the service's collaborators. Store and Coalescer are
// required; the rest default to no-ops when nil.
type Deps struct {
	Store     Store
	Coalescer *Coalescer
	Analyzer  *backtest.Analyzer
	Metrics   metrics.Buffer
	Alerts    AlertSink
	Broadcast Broadcaster
	Cache     TrendCache
	Settings  Settings
}

// NewService creates the analysis service
func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Coalescer == nil {
		return nil, fmt.Errorf("coalescer is required")
	}
	if deps.Analyzer == nil {
		deps.Analyzer = backtest.NewAnalyzer()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopBuffer{}
	}
	if deps.Settings.DefaultHorizonDays == 0 {
		deps.Settings.DefaultHorizonDays = 7
	}
	if deps.Settings.MaxHorizonDays == 0 {
		deps.Settings.MaxHorizonDays = 30
	}
	if deps.Settings.HistoryWindowDays == 0 {
		deps.Settings.HistoryWindowDays = 60
	}
	if deps.Settings.KeywordTimeout == 0 {
		deps.Settings.KeywordTimeout = 30 * time.Second
	}
	if deps.Settings.AnalysisTimeout == 0 {
		deps.Settings.AnalysisTimeout = 3 * time.Minute
	}
	if deps.Settings.ShortlistSize == 0 {
		deps.Settings.ShortlistSize = trends.DefaultShortlistSize
	}

	return &Service{
		builder:    signal.NewBuilder(signal.FillDecay),
		forecaster: forecast.New(),
		ranker:     trends.NewRanker(),
		analyzer:   deps.Analyzer,
		coalescer:  deps.Coalescer,
		store:      deps.Store,
		buffer:     deps.Metrics,
		alerts:     deps.Alerts,
		broadcast:  deps.Broadcast,
		cache:      deps.Cache,
		settings:   deps.Settings,
	}, nil
}

// PredictTrends forecasts a batch of keywords. Per-keyword failures never
// fail the batch; a keyword that times out is served from the store when a
// previous forecast exists.
func (s *Service) PredictTrends(ctx context.Context, req PredictTrendsRequest) (*PredictTrendsResult, error) {
	if len(req.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}

	horizon := req.Days
	if horizon <= 0 {
		horizon = s.settings.DefaultHorizonDays
	}
	if horizon > s.settings.MaxHorizonDays {
		horizon = s.settings.MaxHorizonDays
	}

	keywords := dedupeKeywords(req.Keywords)

	logger.Info("predicting trends",
		zap.String("channel_id", req.ChannelID),
		zap.Int("keywords", len(keywords)),
		zap.Int("horizon_days", horizon),
	)

	type outcome struct {
		keyword   string
		forecast  *models.Forecast
		fromStore bool
		err       error
	}

	outcomes := make([]outcome, len(keywords))
	sem := make(chan struct{}, keywordConcurrency)
	var wg sync.WaitGroup

	for i, keyword := range keywords {
		wg.Add(1)
		go func(i int, keyword string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fc, fromStore, err := s.forecastKeyword(ctx, req.ChannelID, keyword, horizon, req.Samples[keyword])
			outcomes[i] = outcome{keyword: keyword, forecast: fc, fromStore: fromStore, err: err}
		}(i, keyword)
	}
	wg.Wait()

	result := &PredictTrendsResult{Success: true}
	for _, o := range outcomes {
		switch {
		case o.forecast != nil:
			result.Forecasts = append(result.Forecasts, o.forecast)
			if o.fromStore {
				result.FromStore = append(result.FromStore, o.keyword)
			}
		case o.err != nil:
			result.Failed = append(result.Failed, KeywordFailure{
				Keyword: o.keyword,
				Reason:  failureReason(o.err),
			})
		}
	}

	trends.SortForecasts(result.Forecasts)
	result.Emerging = s.ranker.Shortlist(result.Forecasts, s.settings.ShortlistSize)

	s.fanOut(result.Emerging)

	logger.Info("trend prediction completed",
		zap.String("channel_id", req.ChannelID),
		zap.Int("forecasts", len(result.Forecasts)),
		zap.Int("emerging", len(result.Emerging)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}

// forecastKeyword computes one keyword's forecast under the per-keyword
// timeout, coalescing identical concurrent requests. On timeout the last
// stored forecast is returned instead of an error when one exists.
func (s *Service) forecastKeyword(
	ctx context.Context,
	channelID, keyword string,
	horizon int,
	extraSamples []models.InterestSample,
) (*models.Forecast, bool, error) {
	kwCtx, cancel := context.WithTimeout(ctx, s.settings.KeywordTimeout)
	defer cancel()

	start := time.Now()

	fc, coalesced, err := s.coalescer.Do(kwCtx, keyword, func(ctx context.Context) (*models.Forecast, error) {
		return s.computeForecast(ctx, keyword, horizon, extraSamples)
	})

	if err != nil && isTimeout(err) {
		stored, storeErr := s.store.GetPrediction(ctx, channelID, keyword)
		if storeErr == nil {
			logger.Warn("forecast timed out, serving stored prediction",
				zap.String("keyword", keyword),
				zap.String("algo_version", stored.AlgoVersion),
			)
			return stored, true, nil
		}
		if !errors.Is(storeErr, storage.ErrNotFound) {
			logger.Error("stored prediction lookup failed",
				zap.String("keyword", keyword),
				zap.Error(storeErr),
			)
		}
		return nil, false, fmt.Errorf("%w: no stored fallback", models.ErrUpstreamTimeout)
	}
	if err != nil {
		return nil, false, err
	}

	urgency := trends.Urgency(fc)

	// The coalescing leader persists; joiners would only repeat the write
	if !coalesced {
		if saveErr := s.store.SavePrediction(ctx, channelID, fc, urgency); saveErr != nil {
			logger.Error("failed to persist prediction",
				zap.String("keyword", keyword),
				zap.Error(saveErr),
			)
		}
	}

	_ = s.buffer.Add(&metrics.ForecastRunMetric{
		Timestamp:      time.Now().UTC(),
		Keyword:        models.NormalizeKeyword(keyword),
		ChannelID:      channelID,
		HorizonDays:    fc.HorizonDays,
		TrendDirection: string(fc.TrendDirection),
		TrendStrength:  fc.TrendStrength,
		Confidence:     fc.Confidence,
		Urgency:        urgency,
		AlgoVersion:    fc.AlgoVersion,
		Coalesced:      coalesced,
		DurationMs:     int(time.Since(start).Milliseconds()),
	})

	return fc, false, nil
}

// computeForecast builds the keyword's signal from stored history plus any
// caller-supplied samples and fits the model
func (s *Service) computeForecast(
	ctx context.Context,
	keyword string,
	horizon int,
	extraSamples []models.InterestSample,
) (*models.Forecast, error) {
	if len(extraSamples) > 0 {
		if err := s.store.SaveInterestSamples(ctx, keyword, extraSamples); err != nil {
			logger.Warn("failed to persist interest samples",
				zap.String("keyword", keyword),
				zap.Error(err),
			)
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -s.settings.HistoryWindowDays)
	samples, err := s.store.GetInterestSamples(ctx, keyword, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load interest history: %w", err)
	}

	samples = mergeSamples(samples, extraSamples)

	series, err := s.builder.FromSamples(samples, s.settings.HistoryWindowDays, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamTimeout, err)
	}

	return s.forecaster.Forecast(keyword, series, horizon)
}

// FullAnalysis runs forecasting and the historical backtest as one pass
func (s *Service) FullAnalysis(ctx context.Context, req FullAnalysisRequest) (*FullAnalysisResult, error) {
	if req.ChannelID == "" {
		return nil, fmt.Errorf("channel_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.AnalysisTimeout)
	defer cancel()

	logger.Info("starting full analysis",
		zap.String("channel_id", req.ChannelID),
		zap.Int("videos", len(req.Videos)),
		zap.Int("keywords", len(req.Keywords)),
	)

	hp := highPerformers(req.Videos)

	result := &FullAnalysisResult{
		Success:   true,
		ChannelID: req.ChannelID,
		ChannelAnalysis: ChannelAnalysis{
			Channel:        req.Channel,
			HighPerformers: hp,
		},
		SocialTrends: req.SocialTrends,
	}

	if len(req.Keywords) > 0 {
		predictions, err := s.PredictTrends(ctx, PredictTrendsRequest{
			ChannelID: req.ChannelID,
			Keywords:  req.Keywords,
			Days:      req.Days,
			Samples:   req.Samples,
		})
		if err != nil {
			return nil, fmt.Errorf("trend prediction failed: %w", err)
		}
		result.Predictions = predictions
		result.Recommendations = s.recommendations(predictions)
	}

	result.Backtest, result.BacktestStatus = s.runBacktest(ctx, req, hp)

	return result, nil
}

// runBacktest executes the backtest under its own timeout and maps every
// outcome to an explicit status. It never fails the surrounding analysis.
func (s *Service) runBacktest(ctx context.Context, req FullAnalysisRequest, hp models.HighPerformers) (*models.BacktestResult, models.BacktestStatus) {
	status := models.BacktestStatus{
		Enabled:           req.RunBacktest && s.settings.BacktestEnabled,
		VideoCount:        len(req.Videos),
		MeetsRequirements: len(req.Videos) >= backtest.MinVideos,
	}

	if !s.settings.BacktestEnabled {
		status.Status = models.BacktestStatusDisabled
		return nil, status
	}
	if !req.RunBacktest {
		status.Status = models.BacktestStatusNotRun
		return nil, status
	}
	if !status.MeetsRequirements {
		status.Status = models.BacktestStatusInsufficientVideos
		status.Error = fmt.Sprintf("%d videos, need %d", len(req.Videos), backtest.MinVideos)
		return nil, status
	}

	btCtx, cancel := context.WithTimeout(ctx, s.settings.BacktestTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.analyzer.Run(btCtx, req.Videos, hp)
	switch {
	case err == nil:
		status.Status = models.BacktestStatusSuccess
		status.VideosTested = result.TotalVideosTested
	case errors.Is(err, models.ErrInsufficientVideos):
		status.Status = models.BacktestStatusInsufficientVideos
		status.Error = err.Error()
	case isTimeout(err):
		status.Status = models.BacktestStatusTimeout
		status.Error = err.Error()
	default:
		status.Status = models.BacktestStatusError
		status.Error = err.Error()
	}

	metric := &metrics.BacktestRunMetric{
		Timestamp:  time.Now().UTC(),
		ChannelID:  req.ChannelID,
		Status:     status.Status,
		DurationMs: int(time.Since(start).Milliseconds()),
	}

	if result != nil {
		metric.VideosTested = result.TotalVideosTested
		metric.MAE = result.AccuracyMetrics.MAE
		metric.MAPE = result.AccuracyMetrics.MAPE
		metric.RMSE = result.AccuracyMetrics.RMSE
		metric.R2Score = result.AccuracyMetrics.R2Score
		metric.Correlation = result.AccuracyMetrics.Correlation
		metric.Outliers = len(result.TopOutliers)

		if saveErr := s.store.SaveBacktest(ctx, req.ChannelID, result); saveErr != nil {
			logger.Error("failed to persist backtest run",
				zap.String("channel_id", req.ChannelID),
				zap.Error(saveErr),
			)
		}
	}
	_ = s.buffer.Add(metric)

	if err != nil {
		logger.Warn("backtest did not complete",
			zap.String("channel_id", req.ChannelID),
			zap.String("status", status.Status),
			zap.Error(err),
		)
		return nil, status
	}

	return result, status
}

// recommendations derives content suggestions from forecasts, suppressing
// keywords already surfaced on the emerging shortlist
func (s *Service) recommendations(predictions *PredictTrendsResult) []Recommendation {
	onShortlist := make(map[string]bool, len(predictions.Emerging))
	for _, t := range predictions.Emerging {
		onShortlist[t.Key] = true
	}

	recs := make([]Recommendation, 0, len(predictions.Forecasts))
	seen := make(map[string]bool)
	for _, fc := range predictions.Forecasts {
		key := models.NormalizeKeyword(fc.Keyword)
		if onShortlist[key] || seen[key] {
			continue
		}
		seen[key] = true

		var action, reason string
		switch {
		case fc.TrendDirection == models.TrendRising && fc.Confidence >= 60:
			action = "schedule"
			reason = "interest is climbing; schedule content within the forecast window"
		case fc.TrendDirection == models.TrendStable && fc.Confidence >= 60:
			action = "evergreen"
			reason = "stable interest makes this a reliable evergreen topic"
		case fc.TrendDirection == models.TrendFalling:
			action = "deprioritize"
			reason = "interest is declining; postpone related content"
		default:
			action = "watch"
			reason = "signal is too uncertain to act on; keep monitoring"
		}

		recs = append(recs, Recommendation{
			Keyword:    fc.Keyword,
			Key:        key,
			Action:     action,
			Urgency:    trends.Urgency(fc),
			Confidence: fc.Confidence,
			Reason:     reason,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Urgency > recs[j].Urgency
	})
	return recs
}

// fanOut pushes the shortlist to live subscribers and alerts on urgent
// entries. Both paths are advisory and never fail the request.
func (s *Service) fanOut(emerging []models.EmergingTrend) {
	if len(emerging) == 0 {
		return
	}

	if s.broadcast != nil {
		s.broadcast.BroadcastTrends(emerging)
	}

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.cache.PutShortlist(ctx, emerging); err != nil {
			logger.Warn("failed to cache shortlist", zap.Error(err))
		}
	}

	if s.alerts != nil {
		threshold := s.alerts.UrgencyThreshold()
		for _, t := range emerging {
			if t.Urgency >= threshold {
				s.alerts.NotifyTrend(t.Keyword, t.Urgency, t.Confidence, t.PeakDay, t.Summary)
			}
		}
	}
}

// LatestTrends returns the last cached emerging shortlist. An empty result
// means no batch has run inside the cache window.
func (s *Service) LatestTrends(ctx context.Context) ([]models.EmergingTrend, error) {
	if s.cache == nil {
		return nil, nil
	}
	trends, found, err := s.cache.GetShortlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached shortlist: %w", err)
	}
	if !found {
		return nil, nil
	}
	return trends, nil
}

// RefreshPrediction recomputes one stored (channel, keyword) pair, used by
// the background refresh worker. A refreshed forecast that now qualifies
// as emerging is broadcast and alerted like a batch result, but never
// overwrites the cached shortlist.
func (s *Service) RefreshPrediction(ctx context.Context, channelID, keyword string) (*models.Forecast, error) {
	fc, _, err := s.forecastKeyword(ctx, channelID, keyword, s.settings.DefaultHorizonDays, nil)
	if err != nil {
		return nil, err
	}

	if emerging := s.ranker.Shortlist([]*models.Forecast{fc}, 1); len(emerging) == 1 {
		if s.broadcast != nil {
			s.broadcast.BroadcastTrends(emerging)
		}
		if s.alerts != nil && emerging[0].Urgency >= s.alerts.UrgencyThreshold() {
			t := emerging[0]
			s.alerts.NotifyTrend(t.Keyword, t.Urgency, t.Confidence, t.PeakDay, t.Summary)
		}
	}

	return fc, nil
}

// Settings exposes the effective analysis parameters
func (s *Service) Settings() Settings {
	return s.settings
}

// highPerformers summarizes the top half of the channel's videos by views
func highPerformers(videos []models.VideoObservation) models.HighPerformers {
	if len(videos) == 0 {
		return models.HighPerformers{}
	}

	views := make([]float64, 0, len(videos))
	for _, v := range videos {
		if v.ViewCount > 0 {
			views = append(views, float64(v.ViewCount))
		}
	}
	if len(views) == 0 {
		return models.HighPerformers{TotalVideos: len(videos)}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(views)))

	top := views[:(len(views)+1)/2]

	var sum float64
	for _, v := range top {
		sum += v
	}

	median := top[len(top)/2]
	if len(top)%2 == 0 {
		median = (top[len(top)/2-1] + top[len(top)/2]) / 2
	}

	return models.HighPerformers{
		AvgViews:    sum / float64(len(top)),
		MedianViews: median,
		TotalVideos: len(videos),
	}
}

func dedupeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		key := models.NormalizeKeyword(k)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	return out
}

// mergeSamples overlays extras onto stored history without duplicating a
// (date, source) reading
func mergeSamples(stored, extras []models.InterestSample) []models.InterestSample {
	if len(extras) == 0 {
		return stored
	}

	type sampleKey struct {
		date   string
		source string
	}
	have := make(map[sampleKey]bool, len(stored))
	for _, s := range stored {
		have[sampleKey{s.Date.UTC().Format("2006-01-02"), s.Source}] = true
	}

	out := stored
	for _, s := range extras {
		k := sampleKey{s.Date.UTC().Format("2006-01-02"), s.Source}
		if !have[k] {
			have[k] = true
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, models.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, models.ErrComputationFailure):
		return "computation_failed"
	default:
		return err.Error()
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, models.ErrUpstreamTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
