package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

// ErrNotFound is returned when no stored prediction exists for a keyword
var ErrNotFound = errors.New("prediction not found")

// previewPoints caps how many forecast points are denormalized into the
// prediction row; full point sets live only in the API response
const previewPoints = 7

// Repository persists interest history, forecasts and backtest runs
type Repository struct {
	db *sqlx.DB
}

// New creates a storage repository
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ============ INTEREST HISTORY ============

type interestRow struct {
	Keyword string    `db:"keyword"`
	Date    time.Time `db:"date"`
	Score   float64   `db:"score"`
	Source  string    `db:"source"`
}

// SaveInterestSamples upserts daily interest readings for a keyword.
// One row per (keyword, date, source); later writes win.
func (r *Repository) SaveInterestSamples(ctx context.Context, keyword string, samples []models.InterestSample) error {
	if len(samples) == 0 {
		return nil
	}

	key := models.NormalizeKeyword(keyword)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO trend_history (keyword, date, score, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (keyword, date, source)
		DO UPDATE SET score = EXCLUDED.score`

	for _, s := range samples {
		if _, err := tx.ExecContext(ctx, query, key, s.Date.UTC().Truncate(24*time.Hour), s.Score, s.Source); err != nil {
			return fmt.Errorf("failed to upsert interest sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit interest samples: %w", err)
	}

	logger.Debug("interest samples saved",
		zap.String("keyword", key),
		zap.Int("count", len(samples)),
	)
	return nil
}

// GetInterestSamples returns a keyword's interest history inside the window,
// oldest first
func (r *Repository) GetInterestSamples(ctx context.Context, keyword string, since time.Time) ([]models.InterestSample, error) {
	key := models.NormalizeKeyword(keyword)

	var rows []interestRow
	query := `
		SELECT keyword, date, score, source
		FROM trend_history
		WHERE keyword = $1 AND date >= $2
		ORDER BY date ASC`

	if err := r.db.SelectContext(ctx, &rows, query, key, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query interest history: %w", err)
	}

	samples := make([]models.InterestSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, models.InterestSample{
			Date:   row.Date,
			Score:  row.Score,
			Source: row.Source,
		})
	}
	return samples, nil
}

// ============ PREDICTIONS ============

type predictionRow struct {
	ID             uuid.UUID       `db:"id"`
	ChannelID      string          `db:"channel_id"`
	Keyword        string          `db:"keyword"`
	HorizonDays    int             `db:"horizon_days"`
	TrendDirection string          `db:"trend_direction"`
	TrendStrength  decimal.Decimal `db:"trend_strength"`
	Confidence     decimal.Decimal `db:"confidence"`
	Urgency        decimal.Decimal `db:"urgency"`
	PeakDay        sql.NullInt64   `db:"peak_day"`
	PeakScore      decimal.Decimal `db:"peak_score"`
	Summary        string          `db:"summary"`
	PointsJSON     []byte          `db:"points"`
	AlgoVersion    string          `db:"algo_version"`
	GeneratedAt    time.Time       `db:"generated_at"`
}

// SavePrediction upserts the latest forecast for (channel, keyword). The
// previous row is replaced wholesale; forecasts are immutable snapshots so
// replace-on-refresh keeps exactly one current row per pair.
func (r *Repository) SavePrediction(ctx context.Context, channelID string, forecast *models.Forecast, urgency float64) error {
	points := forecast.Points
	if len(points) > previewPoints {
		points = points[:previewPoints]
	}
	pointsJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast points: %w", err)
	}

	var peakDay sql.NullInt64
	if forecast.PeakDay != nil {
		peakDay = sql.NullInt64{Int64: int64(*forecast.PeakDay), Valid: true}
	}

	query := `
		INSERT INTO channel_predictions (
			id, channel_id, keyword, horizon_days, trend_direction,
			trend_strength, confidence, urgency, peak_day, peak_score,
			summary, points, algo_version, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (channel_id, keyword)
		DO UPDATE SET
			horizon_days = EXCLUDED.horizon_days,
			trend_direction = EXCLUDED.trend_direction,
			trend_strength = EXCLUDED.trend_strength,
			confidence = EXCLUDED.confidence,
			urgency = EXCLUDED.urgency,
			peak_day = EXCLUDED.peak_day,
			peak_score = EXCLUDED.peak_score,
			summary = EXCLUDED.summary,
			points = EXCLUDED.points,
			algo_version = EXCLUDED.algo_version,
			generated_at = EXCLUDED.generated_at`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New(),
		channelID,
		models.NormalizeKeyword(forecast.Keyword),
		forecast.HorizonDays,
		string(forecast.TrendDirection),
		models.NewDecimal(forecast.TrendStrength),
		models.NewDecimal(forecast.Confidence),
		models.NewDecimal(urgency),
		peakDay,
		models.NewDecimal(forecast.PeakScore),
		forecast.Summary,
		pointsJSON,
		forecast.AlgoVersion,
		forecast.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	logger.Debug("prediction saved",
		zap.String("channel_id", channelID),
		zap.String("keyword", forecast.Keyword),
		zap.String("algo_version", forecast.AlgoVersion),
	)
	return nil
}

// GetPrediction returns the stored forecast for (channel, keyword) or
// ErrNotFound
func (r *Repository) GetPrediction(ctx context.Context, channelID, keyword string) (*models.Forecast, error) {
	var row predictionRow
	query := `
		SELECT id, channel_id, keyword, horizon_days, trend_direction,
		       trend_strength, confidence, urgency, peak_day, peak_score,
		       summary, points, algo_version, generated_at
		FROM channel_predictions
		WHERE channel_id = $1 AND keyword = $2`

	err := r.db.GetContext(ctx, &row, query, channelID, models.NormalizeKeyword(keyword))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction: %w", err)
	}

	return rowToForecast(&row)
}

// StaleKeyword identifies a stored prediction due for recomputation
type StaleKeyword struct {
	ChannelID string `db:"channel_id"`
	Keyword   string `db:"keyword"`
}

// StaleKeywords returns predictions whose confidence sits below the floor or
// that were produced by an older algorithm version. Both are grounds for a
// background refresh.
func (r *Repository) StaleKeywords(ctx context.Context, confidenceFloor float64, currentVersion string, limit int) ([]StaleKeyword, error) {
	var rows []StaleKeyword
	query := `
		SELECT channel_id, keyword
		FROM channel_predictions
		WHERE confidence < $1 OR algo_version <> $2
		ORDER BY generated_at ASC
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &rows, query, models.NewDecimal(confidenceFloor), currentVersion, limit); err != nil {
		return nil, fmt.Errorf("failed to query stale keywords: %w", err)
	}
	return rows, nil
}

func rowToForecast(row *predictionRow) (*models.Forecast, error) {
	var points []models.ForecastPoint
	if len(row.PointsJSON) > 0 {
		if err := json.Unmarshal(row.PointsJSON, &points); err != nil {
			return nil, fmt.Errorf("failed to unmarshal forecast points: %w", err)
		}
	}

	var peakDay *int
	if row.PeakDay.Valid {
		day := int(row.PeakDay.Int64)
		peakDay = &day
	}

	return &models.Forecast{
		Keyword:        row.Keyword,
		HorizonDays:    row.HorizonDays,
		Points:         points,
		TrendDirection: models.TrendDirection(row.TrendDirection),
		TrendStrength:  models.ToFloat64(row.TrendStrength),
		Confidence:     models.ToFloat64(row.Confidence),
		PeakDay:        peakDay,
		PeakScore:      models.ToFloat64(row.PeakScore),
		Summary:        row.Summary,
		AlgoVersion:    row.AlgoVersion,
		GeneratedAt:    row.GeneratedAt,
	}, nil
}

// ============ BACKTEST RUNS ============

// SaveBacktest records a completed backtest run for audit
func (r *Repository) SaveBacktest(ctx context.Context, channelID string, result *models.BacktestResult) error {
	metricsJSON, err := json.Marshal(result.AccuracyMetrics)
	if err != nil {
		return fmt.Errorf("failed to marshal accuracy metrics: %w", err)
	}

	outliersJSON, err := json.Marshal(result.TopOutliers)
	if err != nil {
		return fmt.Errorf("failed to marshal outliers: %w", err)
	}

	query := `
		INSERT INTO backtest_runs (id, channel_id, videos_tested, accuracy_metrics, top_outliers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New(),
		channelID,
		result.TotalVideosTested,
		metricsJSON,
		outliersJSON,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}
	return nil
}
