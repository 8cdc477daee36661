package models

import "time"

type Action string

const (
	ActionAccept        Action = "accept"
	ActionReject        Action = "reject"
	ActionComplete      Action = "complete"
	ActionCancel        Action = "cancel"
	ActionAcceptInstant Action = "accept_instant"
	ActionRejectInstant Action = "reject_instant"
)

// ActionResult is how a lifecycle action ended.
type ActionResult string

const (
	ResultOK       ActionResult = "ok"
	ResultFailed   ActionResult = "failed"
	ResultStale    ActionResult = "stale"
	ResultDeclined ActionResult = "declined"
	ResultInvalid  ActionResult = "invalid"
)

// ActionLogEntry records one lifecycle action attempt.
type ActionLogEntry struct {
	ID        int64        `json:"id"`
	Action    Action       `json:"action"`
	BookingID string       `json:"booking_id"`
	UserID    string       `json:"user_id"`
	Result    ActionResult `json:"result"`
	Message   string       `json:"message,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
