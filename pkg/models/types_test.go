package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestForecastJSONRoundTrip(t *testing.T) {
	peak := 3
	original := Forecast{
		Keyword:        "ai tools",
		HorizonDays:    7,
		TrendDirection: TrendRising,
		TrendStrength:  64.5,
		Confidence:     81.2,
		PeakDay:        &peak,
		PeakScore:      92.1,
		Summary:        "on the way up",
		AlgoVersion:    "2.1.0",
		GeneratedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Points: []ForecastPoint{
			{Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), PredictedScore: 70, LowerBound: 60, UpperBound: 80, ConfidenceRange: 20},
		},
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Forecast
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.TrendDirection != TrendRising {
		t.Errorf("trend direction lost: %s", decoded.TrendDirection)
	}
	if decoded.Confidence != original.Confidence {
		t.Errorf("confidence lost: %.2f", decoded.Confidence)
	}
	if decoded.PeakDay == nil || *decoded.PeakDay != peak {
		t.Errorf("peak day lost: %v", decoded.PeakDay)
	}
	if decoded.AlgoVersion != original.AlgoVersion {
		t.Errorf("algo version lost: %s", decoded.AlgoVersion)
	}
	if len(decoded.Points) != 1 {
		t.Fatalf("points lost: %d", len(decoded.Points))
	}
}

func TestForecastNilPeakSerializesAsNull(t *testing.T) {
	raw, err := json.Marshal(Forecast{Keyword: "x"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	v, present := m["peak_day"]
	if !present {
		t.Fatal("peak_day missing from payload; consumers distinguish null from absent")
	}
	if v != nil {
		t.Errorf("expected null peak_day, got %v", v)
	}
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AI Tools", "ai tools"},
		{"  AI   Tools  ", "ai tools"},
		{"ai tools", "ai tools"},
		{"\tAI\nTools", "ai tools"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKeyword(tt.in); got != tt.want {
			t.Errorf("NormalizeKeyword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutlierEmbedsBacktest(t *testing.T) {
	o := Outlier{
		VideoBacktest: VideoBacktest{VideoID: "v1", ActualViews: 5000, OutlierRatio: 2.5},
		Analysis: OutlierAnalysis{
			Summary: "big",
			Reasons: []OutlierFactor{{Factor: "topic heat", Impact: ImpactHigh, Score: 80}},
		},
	}

	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// Embedded backtest fields flatten into the outlier object
	if m["video_id"] != "v1" {
		t.Errorf("embedded video_id not flattened: %v", m["video_id"])
	}
	if _, ok := m["analysis"]; !ok {
		t.Error("analysis missing")
	}
}
