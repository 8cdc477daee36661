package models

type Status string

const (
	StatusPending          Status = "pending"
	StatusBookingAccepted  Status = "booking_accepted"
	StatusPaymentPending   Status = "payment_pending"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusBooked           Status = "booked"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"
	StatusRejected         Status = "rejected"
)

type RequestType string

const (
	RequestScheduled RequestType = "scheduled"
	RequestInstant   RequestType = "instant"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

const (
	// DefaultPollIntervalSeconds интервал опроса списка бронирований
	DefaultPollIntervalSeconds = 5

	// DefaultTickMillis шаг обратного отсчета
	DefaultTickMillis = 1000

	// DefaultRequestTimeoutSeconds клиентский таймаут запроса к бэкенду
	DefaultRequestTimeoutSeconds = 30

	// DefaultSessionTTL время жизни сессии в Redis
	DefaultSessionTTL = 7 * 24 * 60 * 60 // 7 дней в секундах

	// DefaultToastMillis время показа уведомления
	DefaultToastMillis = 4000

	// LeaderboardSize сколько строк рейтинга показывать
	LeaderboardSize = 5

	// RecentBookingsSize размер блока последних заявок
	RecentBookingsSize = 4

	// MaxRejectionReasonLen ограничение длины причины отказа
	MaxRejectionReasonLen = 500
)

var statusLabels = map[Status]string{
	StatusPending:          "Pending",
	StatusBookingAccepted:  "Awaiting Payment",
	StatusPaymentPending:   "Payment Pending",
	StatusPaymentConfirmed: "Payment Confirmed",
	StatusBooked:           "Booked",
	StatusInProgress:       "In Progress",
	StatusCompleted:        "Completed",
	StatusCancelled:        "Cancelled",
	StatusExpired:          "Expired",
	StatusRejected:         "Rejected",
}

// Label returns the human label, falling back to the raw value for unknown statuses.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s Status) IsKnown() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// IsActive covers everything between submission and completion.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusBookingAccepted, StatusPaymentPending,
		StatusPaymentConfirmed, StatusBooked, StatusInProgress:
		return true
	default:
		return false
	}
}

var transitions = map[Status][]Status{
	StatusPending:          {StatusBookingAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusBookingAccepted:  {StatusInProgress, StatusPaymentPending, StatusCancelled},
	StatusPaymentPending:   {StatusPaymentConfirmed},
	StatusPaymentConfirmed: {StatusBooked, StatusInProgress},
	StatusBooked:           {StatusInProgress},
	StatusInProgress:       {StatusCompleted},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
