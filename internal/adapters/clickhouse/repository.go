package clickhouse

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/metrics"
)

// Column sets per metric table, in the order Metric.Values() emits them
var tableColumns = map[string][]string{
	"forecast_run_metrics": {
		"timestamp", "keyword", "channel_id", "horizon_days",
		"trend_direction", "trend_strength", "confidence", "urgency",
		"algo_version", "coalesced", "duration_ms",
	},
	"backtest_run_metrics": {
		"timestamp", "channel_id", "videos_tested", "mae", "mape",
		"rmse", "r2_score", "correlation", "outliers", "status",
		"duration_ms",
	},
}

// Repository writes analytics metrics to ClickHouse in batches.
// Implements metrics.Writer.
type Repository struct {
	db *sqlx.DB
}

// New opens the ClickHouse connection
func New(dsn string) (*Repository, error) {
	db, err := sqlx.Connect("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	logger.Info("clickhouse connection established")

	return &Repository{db: db}, nil
}

// Write inserts a batch of metrics into one table inside a transaction
func (r *Repository) Write(ctx context.Context, tableName string, batch []metrics.Metric) error {
	if len(batch) == 0 {
		return nil
	}

	columns, ok := tableColumns[tableName]
	if !ok {
		return fmt.Errorf("unknown metrics table: %s", tableName)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.Preparex(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		values := m.Values()
		if len(values) != len(columns) {
			tx.Rollback()
			return fmt.Errorf("metric for %s has %d values, table has %d columns", tableName, len(values), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved metrics to ClickHouse",
		zap.String("table", tableName),
		zap.Int("count", len(batch)),
	)

	return nil
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
