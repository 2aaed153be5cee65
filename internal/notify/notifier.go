package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// PriceChange describes a detected change for one tracked product.
type PriceChange struct {
	Name     string
	URL      string
	NewPrice string
	OldPrice string
}

// Notifier delivers price-change events to product owners. Delivery is
// fire-and-forget from the monitor's perspective: failures are reported back
// once and never retried.
type Notifier interface {
	Notify(ctx context.Context, userID int64, change PriceChange) error
}

// FormatMessage renders the markdown message sent on a price change.
func FormatMessage(change PriceChange) string {
	return fmt.Sprintf(
		"The product price has changed:\n[%s](%s)\n**New price:** %s\n**Previous price:** %s",
		change.Name, change.URL, change.NewPrice, change.OldPrice,
	)
}

// TelegramNotifier sends change messages through the Telegram Bot API.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewTelegramNotifier(api *tgbotapi.BotAPI, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: api, logger: logger.Named("notify")}
}

func (t *TelegramNotifier) Notify(ctx context.Context, userID int64, change PriceChange) error {
	msg := tgbotapi.NewMessage(userID, FormatMessage(change))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	t.logger.Debug("notification sent",
		zap.Int64("user_id", userID),
		zap.String("url", change.URL))
	return nil
}

// NopNotifier discards notifications. Used when no Telegram token is
// configured and by tests.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, int64, PriceChange) error { return nil }
