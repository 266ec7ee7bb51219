package workers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/adapters/storage"
	"github.com/selivandex/trendcast/internal/analysis"
	"github.com/selivandex/trendcast/internal/forecast"
	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

// refreshBatchSize caps stale predictions recomputed per iteration so one
// run never monopolizes the keyword locks
const refreshBatchSize = 20

// StaleSource lists stored predictions due for recomputation
type StaleSource interface {
	StaleKeywords(ctx context.Context, confidenceFloor float64, currentVersion string, limit int) ([]storage.StaleKeyword, error)
}

// ShortlistInvalidator drops the cached shortlist once refreshed
// predictions make it stale
type ShortlistInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RefreshWorker recomputes stored predictions whose confidence fell below
// the floor or that were produced by an older model version. Implements
// worker.Worker.
type RefreshWorker struct {
	service         *analysis.Service
	stale           StaleSource
	invalidator     ShortlistInvalidator
	confidenceFloor float64
}

// NewRefreshWorker creates the stale-prediction refresh worker.
// invalidator may be nil when no shortlist cache is wired.
func NewRefreshWorker(service *analysis.Service, stale StaleSource, invalidator ShortlistInvalidator, confidenceFloor float64) *RefreshWorker {
	return &RefreshWorker{
		service:         service,
		stale:           stale,
		invalidator:     invalidator,
		confidenceFloor: confidenceFloor,
	}
}

// Name returns worker name for logging
func (w *RefreshWorker) Name() string {
	return "prediction-refresh"
}

// Run refreshes one batch of stale predictions. Per-keyword failures are
// logged and skipped; a keyword whose history shrank below the minimum is
// simply left stale until new data arrives.
func (w *RefreshWorker) Run(ctx context.Context) error {
	stale, err := w.stale.StaleKeywords(ctx, w.confidenceFloor, forecast.AlgoVersion, refreshBatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	logger.Info("refreshing stale predictions",
		zap.Int("count", len(stale)),
	)

	start := time.Now()
	refreshed := 0
	for _, entry := range stale {
		if ctx.Err() != nil {
			break
		}

		if _, err := w.service.RefreshPrediction(ctx, entry.ChannelID, entry.Keyword); err != nil {
			if errors.Is(err, models.ErrInsufficientData) || errors.Is(err, models.ErrInsufficientHistory) {
				logger.Debug("stale prediction has too little history to refresh",
					zap.String("channel_id", entry.ChannelID),
					zap.String("keyword", entry.Keyword),
				)
				continue
			}
			logger.Warn("failed to refresh prediction",
				zap.String("channel_id", entry.ChannelID),
				zap.String("keyword", entry.Keyword),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}

	if refreshed > 0 && w.invalidator != nil {
		if err := w.invalidator.Invalidate(ctx); err != nil {
			logger.Warn("failed to invalidate cached shortlist", zap.Error(err))
		}
	}

	logger.Info("prediction refresh completed",
		zap.Int("refreshed", refreshed),
		zap.Int("stale", len(stale)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
