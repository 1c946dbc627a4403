package notify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// Notifier delivers best-effort human alerts. Delivery failure is logged
// and swallowed; a broken notification channel must never block a trading
// decision.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// TelegramNotifier posts Markdown messages to a Telegram chat.
type TelegramNotifier struct {
	chatID string
	http   *resty.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	httpClient := resty.New().
		SetBaseURL("https://api.telegram.org/bot" + token).
		SetTimeout(10 * time.Second)

	return &TelegramNotifier{chatID: chatID, http: httpClient}
}

func (n *TelegramNotifier) Send(ctx context.Context, message string) {
	// Mirror every alert to the local log so an operator watching the
	// process sees what the chat sees.
	logger.Info(strings.ReplaceAll(message, "\n", " | "))

	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    n.chatID,
			"text":       message,
			"parse_mode": "Markdown",
		}).
		Post("/sendMessage")
	if err != nil {
		logger.WithError(err).Warn("telegram notification failed")
		return
	}
	if resp.IsError() {
		logger.WithField("status", resp.StatusCode()).Warn("telegram notification rejected")
	}
}

// NopNotifier logs alerts locally when no Telegram channel is configured.
type NopNotifier struct{}

func (NopNotifier) Send(_ context.Context, message string) {
	logger.Info(strings.ReplaceAll(message, "\n", " | "))
}

// FromConfig picks the Telegram notifier when both the token and chat ID
// are set, otherwise the local-log fallback.
func FromConfig(cfg Config) Notifier {
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		return NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	}
	logger.Warn("telegram not configured, notifications go to the log only")
	return NopNotifier{}
}
