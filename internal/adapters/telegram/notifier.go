package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/adapters/config"
	"github.com/selivandex/trendcast/pkg/logger"
)

// Notifier pushes urgent-trend alerts to a Telegram chat
type Notifier struct {
	bot              *tgbotapi.BotAPI
	chatID           int64
	urgencyThreshold float64
}

// New creates a Telegram notifier
func New(cfg *config.TelegramConfig) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("telegram notifier initialized",
		zap.String("bot", bot.Self.UserName),
		zap.Int64("chat_id", cfg.ChatID),
		zap.Float64("urgency_threshold", cfg.UrgencyThreshold),
	)

	return &Notifier{
		bot:              bot,
		chatID:           cfg.ChatID,
		urgencyThreshold: cfg.UrgencyThreshold,
	}, nil
}

// UrgencyThreshold returns the minimum urgency that triggers an alert
func (n *Notifier) UrgencyThreshold() float64 {
	return n.urgencyThreshold
}

// NotifyTrend sends an alert for one emerging trend. Alerts are advisory;
// a send failure is logged and swallowed so it never blocks analysis.
func (n *Notifier) NotifyTrend(keyword string, urgency, confidence float64, peakDay *int, summary string) {
	var b strings.Builder
	fmt.Fprintf(&b, "*Emerging trend: %s*\n", escapeMarkdown(keyword))
	fmt.Fprintf(&b, "Urgency: %.0f/100, confidence: %.0f%%\n", urgency, confidence)
	if peakDay != nil {
		fmt.Fprintf(&b, "Expected peak in %d day(s)\n", *peakDay)
	}
	if summary != "" {
		fmt.Fprintf(&b, "\n%s", escapeMarkdown(summary))
	}

	msg := tgbotapi.NewMessage(n.chatID, b.String())
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		logger.Warn("failed to send trend alert",
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return
	}

	logger.Info("trend alert sent",
		zap.String("keyword", keyword),
		zap.Float64("urgency", urgency),
	)
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return replacer.Replace(s)
}
