package service

import (
	"time"

	"homehelper/internal/models"
	"homehelper/internal/timer"
	"homehelper/internal/views"
)

// Snapshot is the derived dashboard state at one instant. It is computed
// from copies of the lists and never shares memory with the tracker.
type Snapshot struct {
	Role           models.Role            `json:"role"`
	At             time.Time              `json:"at"`
	Pending        []models.BookingRecord `json:"pending"`
	Active         []models.BookingRecord `json:"active"`
	Completed      []models.BookingRecord `json:"completed"`
	Instant        []models.BookingRecord `json:"instant,omitempty"`
	Recent         []models.BookingRecord `json:"recent"`
	Counts         views.Counts           `json:"counts"`
	Featured       *views.Featured        `json:"featured,omitempty"`
	Next           *models.BookingRecord  `json:"next,omitempty"`
	CompletedSpend float64                `json:"completed_spend"`
	Countdowns     map[string]string      `json:"countdowns"`
}

// Snapshot derives every dashboard view at now. Records whose countdown
// already fired are left out of the pending and active views even when the
// backend still reports them pending.
func (t *BookingTracker) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	lists := make(map[ListKind][]models.BookingRecord, len(t.lists))
	for kind, records := range t.lists {
		lists[kind] = append([]models.BookingRecord(nil), records...)
	}
	countdowns := make(map[string]string, len(t.timers)+len(t.expired))
	expired := make(map[string]struct{}, len(t.expired))
	for id := range t.expired {
		expired[id] = struct{}{}
		countdowns[id] = timer.ExpiredLabel
	}
	for id, entry := range t.timers {
		countdowns[id] = entry.cd.Display()
	}
	t.mu.Unlock()

	snap := Snapshot{
		Role:       t.Role(),
		At:         now,
		Countdowns: countdowns,
	}

	var all []models.BookingRecord
	if snap.Role == models.RoleProvider {
		all = mergeByID(lists[ListActive], lists[ListCompleted])
		snap.Instant = views.Pending(dropExpired(lists[ListInstant], expired), now)
	} else {
		all = lists[ListBookings]
	}

	live := dropExpired(all, expired)
	snap.Pending = views.Pending(live, now)
	snap.Active = views.Active(live, now)
	snap.Completed = views.Completed(all)
	snap.Counts = views.Count(live, now)
	snap.Recent = views.Recent(all, models.RecentBookingsSize)
	snap.CompletedSpend = views.CompletedSpend(all)

	if f, ok := views.PickFeatured(snap.Completed); ok {
		snap.Featured = &f
	}
	if next, ok := views.NextBooking(live, now); ok {
		snap.Next = &next
	}
	return snap
}

// dropExpired removes pending records whose countdown has fired.
func dropExpired(records []models.BookingRecord, expired map[string]struct{}) []models.BookingRecord {
	if len(expired) == 0 {
		return records
	}
	out := make([]models.BookingRecord, 0, len(records))
	for i := range records {
		if _, ok := expired[records[i].ID]; ok && records[i].Status == models.StatusPending {
			continue
		}
		out = append(out, records[i])
	}
	return out
}

// mergeByID concatenates lists keeping the first occurrence of every id.
func mergeByID(lists ...[]models.BookingRecord) []models.BookingRecord {
	seen := make(map[string]struct{})
	var out []models.BookingRecord
	for _, records := range lists {
		for i := range records {
			if _, dup := seen[records[i].ID]; dup {
				continue
			}
			seen[records[i].ID] = struct{}{}
			out = append(out, records[i])
		}
	}
	return out
}
