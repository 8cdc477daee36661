package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homehelper/internal/config"
	"homehelper/internal/domain"
	"homehelper/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// Toast is a transient user-facing notification.
type Toast struct {
	Status   Status        `json:"status"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

func (t Toast) String() string {
	if t.Message == "" {
		return t.Title
	}
	return t.Title + ": " + t.Message
}

type Notifier interface {
	Notify(ctx context.Context, toast Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, toast Toast)

func (f NotifierFunc) Notify(ctx context.Context, toast Toast) { f(ctx, toast) }

// LogNotifier writes toasts to the structured log.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.Component(logger, "toast")}
}

func (n *LogNotifier) Notify(_ context.Context, toast Toast) {
	event := n.logger.Info()
	if toast.Status == StatusError {
		event = n.logger.Warn()
	}
	event.Str("status", string(toast.Status)).
		Str("title", toast.Title).
		Str("message", toast.Message).
		Dur("duration", toast.Duration).
		Msg("toast")
}

// TelegramNotifier forwards toasts to a single chat.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

// NewTelegramBot connects to the Bot API with the configured token.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logging.Component(logger, "telegram_notifier"),
	}
}

func (n *TelegramNotifier) Notify(_ context.Context, toast Toast) {
	msg := tgbotapi.NewMessage(n.chatID, FormatTelegram(toast))
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", n.chatID).Msg("failed to send toast")
	}
}

// FormatTelegram renders a toast as a plain-text chat message.
func FormatTelegram(toast Toast) string {
	icon := "ℹ️"
	switch toast.Status {
	case StatusSuccess:
		icon = "✅"
	case StatusError:
		icon = "❌"
	}

	var b strings.Builder
	b.WriteString(icon)
	b.WriteString(" ")
	b.WriteString(toast.Title)
	if toast.Message != "" {
		b.WriteString("\n")
		b.WriteString(toast.Message)
	}
	return b.String()
}

// Multi fans a toast out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, toast Toast) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, toast)
		}
	}
}
