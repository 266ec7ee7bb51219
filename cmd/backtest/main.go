package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/selivandex/trendcast/internal/backtest"
	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

// channelExport is the JSON shape produced by the channel metadata
// collector's export command
type channelExport struct {
	Channel models.ChannelData        `json:"channel"`
	Videos  []models.VideoObservation `json:"videos"`
}

func main() {
	var (
		inputPath   = flag.String("input", "", "Path to channel export JSON")
		topOutliers = flag.Int("top", backtest.DefaultTopOutliers, "Number of outliers to report")
		timeout     = flag.Duration("timeout", 60*time.Second, "Backtest timeout")
		jsonOut     = flag.Bool("json", false, "Print full result as JSON")
		logLevel    = flag.String("log-level", "warn", "Log level")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: backtest -input <channel-export.json> [-top N] [-json]")
		os.Exit(1)
	}

	if err := logger.Init(*logLevel, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	export, err := loadExport(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load export: %v\n", err)
		os.Exit(1)
	}

	hp := highPerformers(export.Videos)

	analyzer := backtest.NewAnalyzer().WithTopOutliers(*topOutliers)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := analyzer.Run(ctx, export.Videos, hp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backtest failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printReport(export.Channel, result)
}

func loadExport(path string) (*channelExport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var export channelExport
	if err := json.NewDecoder(f).Decode(&export); err != nil {
		return nil, fmt.Errorf("invalid export file: %w", err)
	}
	if len(export.Videos) == 0 {
		return nil, fmt.Errorf("export contains no videos")
	}
	return &export, nil
}

// highPerformers summarizes the top half of the channel's videos by views
func highPerformers(videos []models.VideoObservation) models.HighPerformers {
	views := make([]int64, 0, len(videos))
	for _, v := range videos {
		if v.ViewCount > 0 {
			views = append(views, v.ViewCount)
		}
	}
	if len(views) == 0 {
		return models.HighPerformers{TotalVideos: len(videos)}
	}

	sort.Slice(views, func(i, j int) bool { return views[i] > views[j] })
	top := views[:(len(views)+1)/2]

	var sum int64
	for _, v := range top {
		sum += v
	}
	median := float64(top[len(top)/2])
	if len(top)%2 == 0 {
		median = float64(top[len(top)/2-1]+top[len(top)/2]) / 2
	}

	return models.HighPerformers{
		AvgViews:    float64(sum) / float64(len(top)),
		MedianViews: median,
		TotalVideos: len(videos),
	}
}

func printReport(channel models.ChannelData, result *models.BacktestResult) {
	fmt.Printf("Backtest: %s\n", channel.Title)
	fmt.Printf("Videos tested: %d\n\n", result.TotalVideosTested)

	m := result.AccuracyMetrics
	fmt.Println("Accuracy:")
	fmt.Printf("  MAE:         %.0f views\n", m.MAE)
	fmt.Printf("  MAPE:        %.1f%%\n", m.MAPE)
	fmt.Printf("  RMSE:        %.0f views\n", m.RMSE)
	fmt.Printf("  R2:          %.3f (%s)\n", m.R2Score, backtest.QualityBand(m.R2Score))
	fmt.Printf("  Correlation: %.3f\n\n", m.Correlation)

	if len(result.TopOutliers) == 0 {
		fmt.Println("No outliers found.")
		return
	}

	fmt.Printf("Top %d outliers:\n", len(result.TopOutliers))
	for i, o := range result.TopOutliers {
		fmt.Printf("%d. %s\n", i+1, o.Title)
		fmt.Printf("   %d views (%.1fx period average, model estimated %d)\n",
			o.ActualViews, o.OutlierRatio, o.PredictedViews)
		fmt.Printf("   %s\n", o.Analysis.Summary)
		for _, reason := range o.Analysis.Reasons {
			fmt.Printf("   - [%s] %s\n", reason.Impact, reason.Description)
		}
		fmt.Println()
	}
}
