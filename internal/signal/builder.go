package signal

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cinar/indicator"

	"github.com/selivandex/trendcast/pkg/models"
)

// FillPolicy controls how calendar days with no observation are filled.
// The choice biases the forecaster, so it is explicit per builder.
type FillPolicy int

const (
	// FillZero treats a day without signal as zero interest
	FillZero FillPolicy = iota
	// FillDecay carries the previous day's value forward, decayed.
	// Interest rarely drops to nothing between uploads, so this is the
	// default for video-derived signals.
	FillDecay
)

const (
	// MinObservations is the minimum number of qualifying observations
	// (videos plus external samples) required to build a series
	MinObservations = 10

	// decayFactor is the per-day multiplier applied by FillDecay
	decayFactor = 0.85

	// smoothingPeriod flattens single-day spikes before normalization
	smoothingPeriod = 3
)

// Builder turns raw per-video observations and external interest samples
// into a uniform daily 0-100 series for one keyword. Pure transformation,
// no side effects.
type Builder struct {
	policy FillPolicy
	smooth bool
}

// NewBuilder creates a signal builder with the given gap-fill policy
func NewBuilder(policy FillPolicy) *Builder {
	return &Builder{policy: policy, smooth: true}
}

// WithoutSmoothing disables the moving-average pass, mainly for tests
// that need exact raw values
func (b *Builder) WithoutSmoothing() *Builder {
	b.smooth = false
	return b
}

// Build aggregates observations into a daily series covering windowDays
// ending at `until`. Multiple videos published the same day sum their
// contribution; external samples for a day are averaged in.
// Fails with models.ErrInsufficientData below MinObservations.
func (b *Builder) Build(
	videos []models.VideoObservation,
	samples []models.InterestSample,
	windowDays int,
	until time.Time,
) ([]models.TimeSeriesPoint, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("window must be at least one day, got %d", windowDays)
	}

	end := truncateDay(until)
	start := end.AddDate(0, 0, -(windowDays - 1))

	qualifying := 0

	// Sum engagement-weighted video contributions per day
	videoSignal := make(map[time.Time]float64)
	for _, v := range videos {
		day := truncateDay(v.PublishedAt)
		if day.Before(start) || day.After(end) {
			continue
		}
		videoSignal[day] += engagementScore(v)
		qualifying++
	}

	// Average external samples per day
	sampleSum := make(map[time.Time]float64)
	sampleCount := make(map[time.Time]int)
	for _, s := range samples {
		day := truncateDay(s.Date)
		if day.Before(start) || day.After(end) {
			continue
		}
		sampleSum[day] += s.Score
		sampleCount[day]++
		qualifying++
	}

	if qualifying < MinObservations {
		return nil, fmt.Errorf("%w: %d observations in window, need %d",
			models.ErrInsufficientData, qualifying, MinObservations)
	}

	series := make([]models.TimeSeriesPoint, 0, windowDays)
	prev := 0.0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		value, observed := dayValue(day, videoSignal, sampleSum, sampleCount)
		if !observed {
			switch b.policy {
			case FillDecay:
				value = prev * decayFactor
			default:
				value = 0
			}
		}
		prev = value
		series = append(series, models.TimeSeriesPoint{Date: day, Value: value})
	}

	if b.smooth {
		series = smoothSeries(series)
	}

	return normalize(series), nil
}

// dayValue combines video and sample signal for one day. When both are
// present the external sample contributes alongside the video signal on
// the raw scale; both are normalized together afterwards.
func dayValue(
	day time.Time,
	videoSignal map[time.Time]float64,
	sampleSum map[time.Time]float64,
	sampleCount map[time.Time]int,
) (float64, bool) {
	v, hasVideo := videoSignal[day]
	if n := sampleCount[day]; n > 0 {
		return v + sampleSum[day]/float64(n), true
	}
	return v, hasVideo
}

// engagementScore weights a video's reach by interaction depth. Comments
// signal stronger interest than likes, likes stronger than a view.
func engagementScore(v models.VideoObservation) float64 {
	views := float64(v.ViewCount)
	if views < 0 {
		views = 0
	}
	likes := float64(v.LikeCount)
	comments := float64(v.CommentCount)

	// Log-compress views so one viral video does not flatten the rest of
	// the series to zero after normalization
	return math.Log10(views+1)*10 + math.Log10(likes*5+1)*3 + math.Log10(comments*10+1)*2
}

// smoothSeries applies a short moving average to dampen single-day spikes
func smoothSeries(series []models.TimeSeriesPoint) []models.TimeSeriesPoint {
	if len(series) < smoothingPeriod {
		return series
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	smoothed := indicator.Sma(smoothingPeriod, values)
	out := make([]models.TimeSeriesPoint, len(series))
	for i, p := range series {
		out[i] = models.TimeSeriesPoint{Date: p.Date, Value: smoothed[i]}
	}
	return out
}

// normalize rescales the series to the 0-100 interest scale
func normalize(series []models.TimeSeriesPoint) []models.TimeSeriesPoint {
	maxVal := 0.0
	for _, p := range series {
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}
	if maxVal == 0 {
		return series
	}

	out := make([]models.TimeSeriesPoint, len(series))
	for i, p := range series {
		out[i] = models.TimeSeriesPoint{
			Date:  p.Date,
			Value: p.Value / maxVal * 100,
		}
	}
	return out
}

// FromSamples builds a series from external interest samples alone,
// used when keyword history comes from the trend store rather than
// channel uploads
func (b *Builder) FromSamples(samples []models.InterestSample, windowDays int, until time.Time) ([]models.TimeSeriesPoint, error) {
	return b.Build(nil, samples, windowDays, until)
}

// SortObservations orders videos ascending by publish time in place
func SortObservations(videos []models.VideoObservation) {
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].PublishedAt.Before(videos[j].PublishedAt)
	})
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
