package metrics

import "context"

// Metric is one analytics record emitted by a forecast or backtest run
type Metric interface {
	// TableName returns the analytics table this record belongs to
	TableName() string
	// Values returns the record's values in the table's column order
	Values() []interface{}
}

// Writer delivers metric batches to the analytics sink (ClickHouse in
// production, anything batch-shaped in tests)
type Writer interface {
	// Write stores one batch destined for a single table
	Write(ctx context.Context, tableName string, metrics []Metric) error
	// Close flushes any buffered batches and releases the sink
	Close() error
}

// Buffer accumulates run metrics and flushes them in batches so forecast
// requests never block on the analytics sink
type Buffer interface {
	// Add queues a metric; safe for concurrent use
	Add(metric Metric) error
	// Flush drains the buffer to the writer
	Flush(ctx context.Context) error
	// Size reports how many metrics are queued
	Size() int
	// Close flushes once more and stops the buffer
	Close(ctx context.Context) error
}
