package trends

import (
	"testing"

	"github.com/selivandex/trendcast/pkg/models"
)

func intPtr(v int) *int { return &v }

func rising(keyword string, confidence, strength float64, peakDay *int) *models.Forecast {
	return &models.Forecast{
		Keyword:        keyword,
		TrendDirection: models.TrendRising,
		Confidence:     confidence,
		TrendStrength:  strength,
		PeakDay:        peakDay,
	}
}

func TestUrgencyScoring(t *testing.T) {
	tests := []struct {
		name string
		fc   *models.Forecast
		want float64
	}{
		{
			name: "imminent peak gets the strongest boost",
			fc:   rising("a", 80, 60, intPtr(2)),
			want: 72, // 80*60/100 * 1.5
		},
		{
			name: "near peak",
			fc:   rising("b", 80, 60, intPtr(5)),
			want: 57.6, // * 1.2
		},
		{
			name: "distant peak",
			fc:   rising("c", 80, 60, intPtr(7)),
			want: 48, // * 1.0
		},
		{
			name: "no peak still climbing",
			fc:   rising("d", 80, 60, nil),
			want: 52.8, // * 1.1
		},
		{
			name: "capped at 100",
			fc:   rising("e", 100, 100, intPtr(1)),
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Urgency(tt.fc)
			if got < tt.want-0.001 || got > tt.want+0.001 {
				t.Errorf("Urgency() = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestShortlistFiltering(t *testing.T) {
	r := NewRanker()

	forecasts := []*models.Forecast{
		rising("qualifies", 75, 60, intPtr(3)),
		rising("low confidence", 69.9, 90, intPtr(2)),
		rising("weak", 90, 50, intPtr(2)), // strength must exceed 50
		{Keyword: "falling", TrendDirection: models.TrendFalling, Confidence: 95, TrendStrength: 95},
		{Keyword: "stable", TrendDirection: models.TrendStable, Confidence: 95, TrendStrength: 95},
		nil,
	}

	shortlist := r.Shortlist(forecasts, 5)

	if len(shortlist) != 1 {
		t.Fatalf("expected 1 emerging trend, got %d", len(shortlist))
	}
	if shortlist[0].Keyword != "qualifies" {
		t.Errorf("unexpected shortlist entry: %s", shortlist[0].Keyword)
	}
}

func TestShortlistOrderAndTruncation(t *testing.T) {
	r := NewRanker()

	forecasts := []*models.Forecast{
		rising("second", 80, 60, intPtr(5)),  // urgency 57.6
		rising("first", 80, 60, intPtr(2)),   // urgency 72
		rising("third", 75, 55, intPtr(7)),   // urgency 41.25
		rising("fourth", 72, 52, nil),        // urgency 41.18
	}

	shortlist := r.Shortlist(forecasts, 3)

	if len(shortlist) != 3 {
		t.Fatalf("expected shortlist of 3, got %d", len(shortlist))
	}

	wantOrder := []string{"first", "second", "third"}
	for i, want := range wantOrder {
		if shortlist[i].Keyword != want {
			t.Errorf("position %d: got %s, want %s", i, shortlist[i].Keyword, want)
		}
	}

	for i := 1; i < len(shortlist); i++ {
		if shortlist[i].Urgency > shortlist[i-1].Urgency {
			t.Errorf("shortlist not sorted by urgency at %d", i)
		}
	}
}

func TestShortlistNormalizedKey(t *testing.T) {
	r := NewRanker()

	shortlist := r.Shortlist([]*models.Forecast{
		rising("  AI   Tools ", 80, 60, intPtr(2)),
	}, 5)

	if len(shortlist) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(shortlist))
	}
	if shortlist[0].Key != "ai tools" {
		t.Errorf("expected normalized key %q, got %q", "ai tools", shortlist[0].Key)
	}
	if shortlist[0].Keyword != "  AI   Tools " {
		t.Errorf("display keyword should be preserved verbatim, got %q", shortlist[0].Keyword)
	}
}

func TestConfidenceTierLabels(t *testing.T) {
	tests := []struct {
		confidence float64
		want       models.ConfidenceTier
	}{
		{85, models.ConfidenceHigh},
		{80, models.ConfidenceHigh},
		{79.9, models.ConfidenceMedium},
		{60, models.ConfidenceMedium},
		{59.9, models.ConfidenceLow},
		{10, models.ConfidenceLow},
	}

	for _, tt := range tests {
		fc := &models.Forecast{Confidence: tt.confidence}
		if got := fc.ConfidenceLabel(); got != tt.want {
			t.Errorf("ConfidenceLabel(%.1f) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}
