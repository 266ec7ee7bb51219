package redis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

// shortlistKey holds the most recent emerging-trend shortlist across pods
const shortlistKey = "trends:shortlist:latest"

// TrendCache caches the latest ranked shortlist in Redis so reads never
// trigger a recomputation
type TrendCache struct {
	client *Client
	ttl    time.Duration
}

// NewTrendCache creates a shortlist cache with the given TTL
func NewTrendCache(client *Client, ttl time.Duration) *TrendCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TrendCache{client: client, ttl: ttl}
}

// PutShortlist replaces the cached shortlist
func (c *TrendCache) PutShortlist(ctx context.Context, trends []models.EmergingTrend) error {
	if err := c.client.SetJSON(ctx, shortlistKey, trends, c.ttl); err != nil {
		return err
	}
	logger.Debug("shortlist cached",
		zap.Int("trends", len(trends)),
		zap.Duration("ttl", c.ttl),
	)
	return nil
}

// GetShortlist returns the cached shortlist; found is false when the entry
// is absent or expired
func (c *TrendCache) GetShortlist(ctx context.Context) ([]models.EmergingTrend, bool, error) {
	var trends []models.EmergingTrend
	found, err := c.client.GetJSON(ctx, shortlistKey, &trends)
	if err != nil || !found {
		return nil, false, err
	}
	return trends, true, nil
}

// Invalidate drops the cached shortlist
func (c *TrendCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, shortlistKey)
}
