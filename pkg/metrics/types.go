package metrics

import "time"

// ForecastRunMetric records one keyword forecast computation
type ForecastRunMetric struct {
	Timestamp      time.Time
	Keyword        string
	ChannelID      string
	HorizonDays    int
	TrendDirection string
	TrendStrength  float64
	Confidence     float64
	Urgency        float64
	AlgoVersion    string
	Coalesced      bool
	DurationMs     int
}

func (m *ForecastRunMetric) TableName() string {
	return "forecast_run_metrics"
}

func (m *ForecastRunMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.Keyword,
		m.ChannelID,
		m.HorizonDays,
		m.TrendDirection,
		m.TrendStrength,
		m.Confidence,
		m.Urgency,
		m.AlgoVersion,
		m.Coalesced,
		m.DurationMs,
	}
}

// BacktestRunMetric records one backtest run's accuracy
type BacktestRunMetric struct {
	Timestamp    time.Time
	ChannelID    string
	VideosTested int
	MAE          float64
	MAPE         float64
	RMSE         float64
	R2Score      float64
	Correlation  float64
	Outliers     int
	Status       string
	DurationMs   int
}

func (m *BacktestRunMetric) TableName() string {
	return "backtest_run_metrics"
}

func (m *BacktestRunMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.ChannelID,
		m.VideosTested,
		m.MAE,
		m.MAPE,
		m.RMSE,
		m.R2Score,
		m.Correlation,
		m.Outliers,
		m.Status,
		m.DurationMs,
	}
}
