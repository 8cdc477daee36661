package views

import (
	"sort"
	"time"

	"homehelper/internal/models"
)

// Counts are the badge numbers of a dashboard.
type Counts struct {
	Pending         int `json:"pending"`
	Active          int `json:"active"`
	Completed       int `json:"completed"`
	PendingPayment  int `json:"pending_payment"`
	AwaitingPayment int `json:"awaiting_payment"`
	Upcoming        int `json:"upcoming"`
}

// Featured is the top-earning completed record.
type Featured struct {
	Record models.BookingRecord `json:"record"`
	Amount float64              `json:"amount"`
}

// Pending returns records awaiting a response whose deadline has not passed.
func Pending(records []models.BookingRecord, at time.Time) []models.BookingRecord {
	out := make([]models.BookingRecord, 0, len(records))
	for i := range records {
		if records[i].Status == models.StatusPending && !records[i].IsExpiredAt(at) {
			out = append(out, records[i])
		}
	}
	return out
}

// Active returns every non-terminal record, minus pending ones past their deadline.
func Active(records []models.BookingRecord, at time.Time) []models.BookingRecord {
	out := make([]models.BookingRecord, 0, len(records))
	for i := range records {
		if records[i].Status.IsActive() && !records[i].IsExpiredAt(at) {
			out = append(out, records[i])
		}
	}
	return out
}

func Completed(records []models.BookingRecord) []models.BookingRecord {
	out := make([]models.BookingRecord, 0, len(records))
	for i := range records {
		if records[i].Status == models.StatusCompleted {
			out = append(out, records[i])
		}
	}
	return out
}

// Count derives all badge counts from scratch.
func Count(records []models.BookingRecord, at time.Time) Counts {
	var c Counts
	for i := range records {
		rec := &records[i]
		if rec.IsExpiredAt(at) {
			continue
		}
		switch rec.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusCompleted:
			c.Completed++
		case models.StatusPaymentPending:
			c.PendingPayment++
		case models.StatusBookingAccepted:
			c.AwaitingPayment++
		}
		if rec.Status.IsActive() {
			c.Active++
		}
		if isUpcoming(rec, at) {
			c.Upcoming++
		}
	}
	return c
}

// PickFeatured selects the completed record with the highest earned amount.
// Ties keep the first record encountered.
func PickFeatured(completed []models.BookingRecord) (Featured, bool) {
	var best Featured
	found := false
	for i := range completed {
		amount := completed[i].EarnedAmount()
		if !found || amount > best.Amount {
			best = Featured{Record: completed[i], Amount: amount}
			found = true
		}
	}
	return best, found
}

// NextBooking returns the earliest upcoming scheduled record.
func NextBooking(records []models.BookingRecord, at time.Time) (models.BookingRecord, bool) {
	var next *models.BookingRecord
	for i := range records {
		rec := &records[i]
		if !isUpcoming(rec, at) {
			continue
		}
		if next == nil || rec.RequestedDateTime.Before(*next.RequestedDateTime) {
			next = rec
		}
	}
	if next == nil {
		return models.BookingRecord{}, false
	}
	return *next, true
}

// Recent returns up to n records, most recently updated first.
func Recent(records []models.BookingRecord, n int) []models.BookingRecord {
	out := append([]models.BookingRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortTime().After(out[j].SortTime())
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CompletedSpend sums the amounts of completed records.
func CompletedSpend(records []models.BookingRecord) float64 {
	var total float64
	for i := range records {
		if records[i].Status == models.StatusCompleted {
			total += records[i].Amount()
		}
	}
	return total
}

func isUpcoming(rec *models.BookingRecord, at time.Time) bool {
	if rec.RequestedDateTime == nil || rec.Status.IsTerminal() {
		return false
	}
	return !rec.RequestedDateTime.Before(at)
}
