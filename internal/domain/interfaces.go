package domain

import (
	"context"
	"time"

	"homehelper/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingAPI is the subset of the backend the tracker drives.
type BookingAPI interface {
	ProviderBookings(ctx context.Context) ([]models.BookingRecord, error)
	ProviderCompletedBookings(ctx context.Context) ([]models.BookingRecord, error)
	InstantRequests(ctx context.Context) ([]models.BookingRecord, error)
	CustomerBookings(ctx context.Context) ([]models.BookingRecord, error)
	AcceptBooking(ctx context.Context, id string) error
	RejectBooking(ctx context.Context, id, reason string) error
	CompleteBooking(ctx context.Context, id string) error
	AcceptInstant(ctx context.Context, id string) error
	RejectInstant(ctx context.Context, id string) error
	CancelBooking(ctx context.Context, id string) error
}

type SessionRepository interface {
	GetSession(ctx context.Context, key string) (*models.Session, error)
	SetSession(ctx context.Context, key string, session *models.Session) error
	ClearSession(ctx context.Context, key string) error
}

type ActionLog interface {
	LogAction(ctx context.Context, entry *models.ActionLogEntry) error
	RecentActions(ctx context.Context, since time.Time, limit int) ([]*models.ActionLogEntry, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
