package models

import (
	"math"
	"time"
)

// Party is the denormalized counterpart attached to a booking by the backend.
type Party struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type Payment struct {
	Amount float64 `json:"amount"`
	Status string  `json:"status,omitempty"`
}

// BookingRecord is the canonical booking/instant-request shape. Everything past
// Normalize consumes only this type.
type BookingRecord struct {
	ID                string      `json:"id"`
	RequestType       RequestType `json:"request_type"`
	Status            Status      `json:"status"`
	RequestedDateTime *time.Time  `json:"requested_date_time,omitempty"`
	BookingExpiresAt  *time.Time  `json:"booking_expires_at,omitempty"`
	TotalAmount       *float64    `json:"total_amount,omitempty"`
	HourlyRate        float64     `json:"hourly_rate"`
	DurationHours     float64     `json:"duration_hours"`
	Customer          *Party      `json:"customer,omitempty"`
	Provider          *Party      `json:"provider,omitempty"`
	ServiceName       string      `json:"service_name"`
	ServiceAddress    string      `json:"service_address,omitempty"`
	PaymentStatus     string      `json:"payment_status,omitempty"`
	Payments          []Payment   `json:"payments,omitempty"`
	Distance          string      `json:"distance,omitempty"`
	CreatedAt         *time.Time  `json:"created_at,omitempty"`
	StatusUpdatedAt   *time.Time  `json:"status_updated_at,omitempty"`
}

// Amount returns TotalAmount when the backend sent one, otherwise
// HourlyRate × DurationHours. Never negative, never NaN.
func (b *BookingRecord) Amount() float64 {
	if b.TotalAmount != nil {
		return sanitizeAmount(*b.TotalAmount)
	}
	return sanitizeAmount(sanitizeAmount(b.HourlyRate) * sanitizeAmount(b.DurationHours))
}

// EarnedAmount prefers the first recorded payment over the booked amount.
func (b *BookingRecord) EarnedAmount() float64 {
	if len(b.Payments) > 0 {
		return sanitizeAmount(b.Payments[0].Amount)
	}
	return b.Amount()
}

// IsExpiredAt reports whether a pending record's response deadline has passed.
func (b *BookingRecord) IsExpiredAt(now time.Time) bool {
	if b.Status != StatusPending || b.BookingExpiresAt == nil {
		return false
	}
	return now.After(*b.BookingExpiresAt)
}

func (b *BookingRecord) CustomerName() string {
	if b.Customer == nil {
		return ""
	}
	return b.Customer.Name
}

func (b *BookingRecord) ProviderName() string {
	if b.Provider == nil {
		return ""
	}
	return b.Provider.Name
}

// SortTime is the most recent known timestamp of the record, used for
// "recent first" ordering.
func (b *BookingRecord) SortTime() time.Time {
	switch {
	case b.StatusUpdatedAt != nil:
		return *b.StatusUpdatedAt
	case b.CreatedAt != nil:
		return *b.CreatedAt
	case b.RequestedDateTime != nil:
		return *b.RequestedDateTime
	default:
		return time.Time{}
	}
}

func sanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
