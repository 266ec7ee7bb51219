package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

const systemPrompt = `You are an analyst for a video channel. You receive a video that strongly over-performed the channel's average and a list of scored contributing factors. Rewrite the analysis as 2-3 tight sentences a channel owner can act on. Plain language, no bullet points, no hedging.`

// Summarizer rewrites heuristic outlier summaries with an LLM.
// Satisfies backtest.Summarizer.
type Summarizer struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI-backed summarizer
func New(apiKey, model string) *Summarizer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Summarizer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// RefineOutlierSummary asks the model for a polished narrative. Errors are
// returned to the caller, which keeps the heuristic summary instead.
func (s *Summarizer) RefineOutlierSummary(ctx context.Context, outlier models.Outlier) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Video: %q\n", outlier.Title)
	fmt.Fprintf(&b, "Actual views: %d (%.1fx the channel's period average)\n", outlier.ActualViews, outlier.OutlierRatio)
	fmt.Fprintf(&b, "Model estimate: %d views\n", outlier.PredictedViews)
	fmt.Fprintf(&b, "Heuristic summary: %s\n", outlier.Analysis.Summary)
	b.WriteString("Factors:\n")
	for _, reason := range outlier.Analysis.Reasons {
		fmt.Fprintf(&b, "- %s (impact %s, score %.0f): %s\n", reason.Factor, reason.Impact, reason.Score, reason.Description)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
		Temperature: 0.4,
		MaxTokens:   220,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	refined := strings.TrimSpace(resp.Choices[0].Message.Content)

	logger.Debug("outlier summary refined",
		zap.String("video_id", outlier.VideoID),
		zap.Int("length", len(refined)),
	)

	return refined, nil
}
