package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"homehelper/internal/domain"
	"homehelper/internal/events"
	"homehelper/internal/failure"
	"homehelper/internal/logging"
	"homehelper/internal/metrics"
	"homehelper/internal/models"
	"homehelper/internal/notify"
	"homehelper/internal/timer"
	"homehelper/internal/validation"
	"homehelper/internal/views"
	"homehelper/internal/worker"

	"github.com/rs/zerolog"
)

// ListKind names one of the lists a tracker mirrors from the backend.
type ListKind string

const (
	ListActive    ListKind = "active"
	ListCompleted ListKind = "completed"
	ListInstant   ListKind = "instant"
	ListBookings  ListKind = "bookings"
)

var (
	ErrDeclined   = errors.New("action declined")
	ErrInProgress = errors.New("action already in progress")
	ErrNoSession  = errors.New("session is required")
)

const (
	titleListError   = "Bookings error"
	titleExpiredInstant   = "Request Expired"
	titleExpiredScheduled = "Booking Expired"
	titleReasonEmpty = "Reason required"

	msgExpiredInstant   = "An instant booking request has expired and was removed."
	msgExpiredScheduled = "A booking request has expired and was removed."

	promptComplete      = "Are you sure you want to mark this work as completed?"
	promptCancel        = "Are you sure you want to cancel this booking?"
	promptAcceptInstant = "Accept this instant booking request?"
	promptRejectInstant = "Reject this instant booking request?"
)

// inflightAction marks an action awaiting its response. expired is set when
// the record's countdown fires during the call and survives any refresh.
type inflightAction struct {
	action  models.Action
	expired bool
}

type countdownEntry struct {
	cd       *timer.Countdown
	deadline time.Time
	token    uint64
}

// BookingTracker mirrors the booking lists of one session, runs a countdown
// per pending record with a deadline and drives lifecycle actions against
// the backend. The backend is authoritative: lists only change by being
// replaced with a fresh response.
type BookingTracker struct {
	api       domain.BookingAPI
	session   *models.Session
	notifier  notify.Notifier
	events    domain.EventPublisher
	confirmer domain.Confirmer
	actionLog domain.ActionLog
	poller    *worker.Poller
	logger    *zerolog.Logger

	now          func() time.Time
	tick         time.Duration
	pollInterval time.Duration
	toastFor     time.Duration
	loc          *time.Location

	mu       sync.Mutex
	lists    map[ListKind][]models.BookingRecord
	timers   map[string]*countdownEntry
	expired  map[string]time.Time
	inflight map[string]*inflightAction
	token    uint64
	closed   bool
}

type TrackerOption func(*BookingTracker)

func WithConfirmer(c domain.Confirmer) TrackerOption {
	return func(t *BookingTracker) { t.confirmer = c }
}

func WithActionLog(l domain.ActionLog) TrackerOption {
	return func(t *BookingTracker) { t.actionLog = l }
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *BookingTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTick sets the countdown recompute step.
func WithTick(d time.Duration) TrackerOption {
	return func(t *BookingTracker) {
		if d > 0 {
			t.tick = d
		}
	}
}

func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *BookingTracker) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

func WithToastDuration(d time.Duration) TrackerOption {
	return func(t *BookingTracker) {
		if d > 0 {
			t.toastFor = d
		}
	}
}

func WithLocation(loc *time.Location) TrackerOption {
	return func(t *BookingTracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

func NewBookingTracker(api domain.BookingAPI, session *models.Session, notifier notify.Notifier, eventBus domain.EventPublisher, logger *zerolog.Logger, opts ...TrackerOption) (*BookingTracker, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	switch session.User.Role {
	case models.RoleProvider, models.RoleCustomer:
	default:
		return nil, fmt.Errorf("unsupported role %q", session.User.Role)
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	log := logging.Component(logger, "tracker")
	t := &BookingTracker{
		api:          api,
		session:      session,
		notifier:     notifier,
		events:       eventBus,
		poller:       worker.NewPoller(logger),
		logger:       log,
		now:          time.Now,
		tick:         models.DefaultTickMillis * time.Millisecond,
		pollInterval: models.DefaultPollIntervalSeconds * time.Second,
		toastFor:     models.DefaultToastMillis * time.Millisecond,
		loc:          time.UTC,
		lists:        make(map[ListKind][]models.BookingRecord),
		timers:       make(map[string]*countdownEntry),
		expired:      make(map[string]time.Time),
		inflight:     make(map[string]*inflightAction),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *BookingTracker) Role() models.Role {
	return t.session.User.Role
}

// Kinds returns the lists fetched for the session's role.
func (t *BookingTracker) Kinds() []ListKind {
	if t.Role() == models.RoleProvider {
		return []ListKind{ListActive, ListCompleted, ListInstant}
	}
	return []ListKind{ListBookings}
}

func (t *BookingTracker) fetcher(kind ListKind) func(context.Context) ([]models.BookingRecord, error) {
	switch kind {
	case ListActive:
		return t.api.ProviderBookings
	case ListCompleted:
		return t.api.ProviderCompletedBookings
	case ListInstant:
		return t.api.InstantRequests
	default:
		return t.api.CustomerBookings
	}
}

// Refresh fetches every list of the role concurrently. Each response
// replaces its list as soon as it arrives, so the last response to arrive
// wins. A failed fetch leaves that list untouched and raises one error toast.
func (t *BookingTracker) Refresh(ctx context.Context) error {
	kinds := t.Kinds()
	errs := make([]error, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind ListKind) {
			defer wg.Done()
			records, err := t.fetcher(kind)(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("fetch %s: %w", kind, err)
				return
			}
			t.replace(kind, records)
		}(i, kind)
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil && ctx.Err() == nil {
		for _, e := range errs {
			if e != nil {
				t.logger.Warn().Err(e).Msg("list refresh failed")
				t.toast(ctx, notify.StatusError, titleListError, failure.MessageOf(e))
				break
			}
		}
	}
	return err
}

func (t *BookingTracker) replace(kind ListKind, records []models.BookingRecord) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.lists[kind] = records
	stale := t.reconcileLocked()
	active := len(t.timers)
	t.mu.Unlock()

	for _, cd := range stale {
		cd.Stop()
	}
	metrics.SetActiveCountdowns(active)

	_ = t.publish(events.EventBookingsRefreshed, events.RefreshPayload{
		List:  string(kind),
		Count: len(records),
		At:    t.now().UTC(),
	})
}

// reconcileLocked brings the countdown set in line with the current lists
// and returns countdowns the caller must stop after releasing the lock.
func (t *BookingTracker) reconcileLocked() []*timer.Countdown {
	want := make(map[string]time.Time)
	for _, records := range t.lists {
		for i := range records {
			rec := &records[i]
			if rec.Status != models.StatusPending || rec.BookingExpiresAt == nil {
				continue
			}
			want[rec.ID] = *rec.BookingExpiresAt
		}
	}

	for id, deadline := range t.expired {
		next, ok := want[id]
		switch {
		case !ok:
			delete(t.expired, id)
		case next.Equal(deadline):
			delete(want, id)
		default:
			// deadline moved; treat as a fresh request
			delete(t.expired, id)
		}
	}

	var stale []*timer.Countdown
	for id, entry := range t.timers {
		deadline, ok := want[id]
		if ok && deadline.Equal(entry.deadline) {
			continue
		}
		stale = append(stale, entry.cd)
		delete(t.timers, id)
	}

	for id, deadline := range want {
		id, deadline := id, deadline
		if _, ok := t.timers[id]; ok {
			continue
		}
		t.token++
		entry := &countdownEntry{deadline: deadline, token: t.token}
		token := t.token
		entry.cd = timer.New(&deadline, func() { t.onExpire(id, token) },
			timer.WithClock(t.now),
			timer.WithTick(t.tick),
			timer.WithLogger(t.logger),
		)
		t.timers[id] = entry
	}
	return stale
}

// onExpire runs on the countdown goroutine. It never touches the lists;
// the next refresh carries the backend's view of the record.
func (t *BookingTracker) onExpire(id string, token uint64) {
	t.mu.Lock()
	entry, ok := t.timers[id]
	if !ok || entry.token != token || t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.timers, id)
	t.expired[id] = entry.deadline
	if a, busy := t.inflight[id]; busy {
		a.expired = true
	}
	rec, found := t.findLocked(id)
	active := len(t.timers)
	t.mu.Unlock()

	requestType := models.RequestScheduled
	if found {
		requestType = rec.RequestType
	}
	metrics.SetActiveCountdowns(active)
	metrics.IncExpiration(string(requestType))

	eventType := events.EventBookingExpired
	if requestType == models.RequestInstant {
		eventType = events.EventInstantRequestExpired
	}
	_ = t.publish(eventType, t.payload(id, requestType, models.StatusExpired, ""))

	t.logger.Info().Str("booking_id", id).Str("request_type", string(requestType)).Msg("request expired")
	if requestType == models.RequestInstant {
		t.toast(context.Background(), notify.StatusInfo, titleExpiredInstant, msgExpiredInstant)
	} else {
		t.toast(context.Background(), notify.StatusInfo, titleExpiredScheduled, msgExpiredScheduled)
	}
}

func (t *BookingTracker) findLocked(id string) (models.BookingRecord, bool) {
	for _, records := range t.lists {
		for i := range records {
			if records[i].ID == id {
				return records[i], true
			}
		}
	}
	return models.BookingRecord{}, false
}

// Accept accepts a scheduled booking request.
func (t *BookingTracker) Accept(ctx context.Context, id string) error {
	return t.perform(ctx, actionPlan{
		action:    models.ActionAccept,
		id:        id,
		call:      func(ctx context.Context) error { return t.api.AcceptBooking(ctx, id) },
		event:     events.EventBookingAccepted,
		status:    models.StatusBookingAccepted,
		success:   toastText{notify.StatusSuccess, "Booking accepted", "The customer has been notified."},
		failTitle: "Unable to accept booking",
	})
}

// Reject rejects a scheduled booking. An empty or whitespace reason fails
// locally and never reaches the backend.
func (t *BookingTracker) Reject(ctx context.Context, id, reason string) error {
	req, err := validation.ValidateReject(reason)
	if err != nil {
		t.toast(ctx, notify.StatusError, titleReasonEmpty, failure.MessageOf(err))
		t.record(ctx, models.ActionReject, id, models.ResultInvalid, failure.MessageOf(err))
		return err
	}
	return t.perform(ctx, actionPlan{
		action:    models.ActionReject,
		id:        id,
		reason:    req.Reason,
		call:      func(ctx context.Context) error { return t.api.RejectBooking(ctx, id, req.Reason) },
		event:     events.EventBookingRejected,
		status:    models.StatusRejected,
		success:   toastText{notify.StatusInfo, "Booking rejected", "The customer will be informed about the rejection."},
		failTitle: "Unable to reject booking",
	})
}

func (t *BookingTracker) Complete(ctx context.Context, id string) error {
	return t.perform(ctx, actionPlan{
		action:    models.ActionComplete,
		id:        id,
		prompt:    promptComplete,
		call:      func(ctx context.Context) error { return t.api.CompleteBooking(ctx, id) },
		event:     events.EventBookingCompleted,
		status:    models.StatusCompleted,
		success:   toastText{notify.StatusSuccess, "Booking completed", "Great job! This booking is now marked as done."},
		failTitle: "Unable to complete booking",
	})
}

// Cancel is the customer-side withdrawal of a booking.
func (t *BookingTracker) Cancel(ctx context.Context, id string) error {
	return t.perform(ctx, actionPlan{
		action:    models.ActionCancel,
		id:        id,
		prompt:    promptCancel,
		call:      func(ctx context.Context) error { return t.api.CancelBooking(ctx, id) },
		event:     events.EventBookingCancelled,
		status:    models.StatusCancelled,
		success:   toastText{notify.StatusSuccess, "Booking cancelled successfully", ""},
		failTitle: "Unable to cancel booking",
	})
}

func (t *BookingTracker) AcceptInstant(ctx context.Context, id string) error {
	return t.perform(ctx, actionPlan{
		action:      models.ActionAcceptInstant,
		id:          id,
		requestType: models.RequestInstant,
		prompt:      promptAcceptInstant,
		call:        func(ctx context.Context) error { return t.api.AcceptInstant(ctx, id) },
		event:       events.EventInstantRequestAccepted,
		status:      models.StatusBookingAccepted,
		success:     toastText{notify.StatusSuccess, "Request accepted!", "Customer has been notified."},
		failTitle:   "Unable to accept",
	})
}

func (t *BookingTracker) RejectInstant(ctx context.Context, id string) error {
	return t.perform(ctx, actionPlan{
		action:      models.ActionRejectInstant,
		id:          id,
		requestType: models.RequestInstant,
		prompt:      promptRejectInstant,
		call:        func(ctx context.Context) error { return t.api.RejectInstant(ctx, id) },
		event:       events.EventInstantRequestRejected,
		status:      models.StatusRejected,
		success:     toastText{notify.StatusInfo, "Request rejected", "The request has been removed."},
		failTitle:   "Unable to reject",
	})
}

type toastText struct {
	status  notify.Status
	title   string
	message string
}

type actionPlan struct {
	action      models.Action
	id          string
	requestType models.RequestType
	prompt      string
	reason      string
	call        func(ctx context.Context) error
	event       string
	status      models.Status
	success     toastText
	failTitle   string
}

func (t *BookingTracker) perform(ctx context.Context, plan actionPlan) error {
	if plan.requestType == "" {
		plan.requestType = models.RequestScheduled
	}

	if plan.prompt != "" && !t.confirm(ctx, plan.prompt) {
		t.record(ctx, plan.action, plan.id, models.ResultDeclined, "")
		return ErrDeclined
	}

	logger := t.logger.With().Str("action", string(plan.action)).Str("booking_id", plan.id).Logger()

	t.mu.Lock()
	if _, busy := t.inflight[plan.id]; busy {
		t.mu.Unlock()
		return ErrInProgress
	}
	if _, gone := t.expired[plan.id]; gone {
		t.mu.Unlock()
		t.record(ctx, plan.action, plan.id, models.ResultStale, "")
		return failure.Stale(plan.id)
	}
	rec, found := t.findLocked(plan.id)
	marker := &inflightAction{action: plan.action}
	t.inflight[plan.id] = marker
	t.mu.Unlock()

	// сервер решает окончательно, здесь только предупреждаем
	if found && !models.CanTransition(rec.Status, plan.status) {
		logger.Warn().
			Str("from", string(rec.Status)).
			Str("to", string(plan.status)).
			Msg("record not in a source status for this action")
	}

	err := t.call(ctx, plan.call)

	t.mu.Lock()
	delete(t.inflight, plan.id)
	_, stale := t.expired[plan.id]
	stale = stale || marker.expired
	t.mu.Unlock()

	if stale {
		// expiry won the race; the next refresh is authoritative
		logger.Info().AnErr("result", err).Msg("action result discarded, request expired")
		t.record(ctx, plan.action, plan.id, models.ResultStale, "")
		return failure.Stale(plan.id)
	}

	if err != nil {
		msg := failure.MessageOf(err)
		logger.Warn().Err(err).Msg("action failed")
		t.toast(ctx, notify.StatusError, plan.failTitle, msg)
		t.record(ctx, plan.action, plan.id, models.ResultFailed, msg)
		return err
	}

	logger.Info().Msg("action succeeded")
	t.toast(ctx, plan.success.status, plan.success.title, plan.success.message)
	t.record(ctx, plan.action, plan.id, models.ResultOK, "")
	_ = t.publish(plan.event, t.payload(plan.id, plan.requestType, plan.status, plan.reason))

	if err := t.Refresh(ctx); err != nil {
		logger.Debug().Err(err).Msg("refresh after action failed")
	}
	return nil
}

// confirm asks the confirmer. Without one, prompted actions are declined.
func (t *BookingTracker) confirm(ctx context.Context, prompt string) bool {
	if t.confirmer == nil {
		t.logger.Warn().Str("prompt", prompt).Msg("no confirmer configured, action declined")
		return false
	}
	return t.confirmer.Confirm(ctx, prompt)
}

// call shields the tracker from a panicking API implementation.
func (t *BookingTracker) call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("booking api panicked")
			err = failure.Backend(0, "")
		}
	}()
	return fn(ctx)
}

func (t *BookingTracker) record(ctx context.Context, action models.Action, id string, result models.ActionResult, msg string) {
	metrics.IncAction(string(action), string(result))
	if t.actionLog == nil {
		return
	}
	entry := &models.ActionLogEntry{
		Action:    action,
		BookingID: id,
		UserID:    t.session.User.ID,
		Result:    result,
		Message:   msg,
		CreatedAt: t.now(),
	}
	if err := t.actionLog.LogAction(context.WithoutCancel(ctx), entry); err != nil {
		t.logger.Warn().Err(err).Str("booking_id", id).Msg("failed to write action log")
	}
}

func (t *BookingTracker) toast(ctx context.Context, status notify.Status, title, message string) {
	t.notifier.Notify(ctx, notify.Toast{
		Status:   status,
		Title:    title,
		Message:  message,
		Duration: t.toastFor,
	})
}

func (t *BookingTracker) publish(eventType string, payload interface{}) error {
	if t.events == nil {
		return nil
	}
	if err := t.events.PublishJSON(eventType, payload); err != nil {
		t.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
		return err
	}
	return nil
}

func (t *BookingTracker) payload(id string, requestType models.RequestType, status models.Status, reason string) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:   id,
		RequestType: string(requestType),
		Status:      string(status),
		UserID:      t.session.User.ID,
		Role:        string(t.Role()),
		Reason:      reason,
		At:          t.now().UTC(),
	}
}

// Records returns a copy of one list as last received.
func (t *BookingTracker) Records(kind ListKind) []models.BookingRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.BookingRecord(nil), t.lists[kind]...)
}

// Filter applies search criteria to a copy of one list.
func (t *BookingTracker) Filter(kind ListKind, c views.Criteria) []models.BookingRecord {
	if c.Location == nil {
		c.Location = t.loc
	}
	return views.Filter(t.Records(kind), c)
}

// InFlight reports whether an action for id is awaiting its response.
func (t *BookingTracker) InFlight(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[id]
	return ok
}

// Expired reports whether the countdown for id reached zero locally.
func (t *BookingTracker) Expired(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.expired[id]
	return ok
}

// Countdown returns the display for a record's countdown, empty when the
// record has none.
func (t *BookingTracker) Countdown(id string) string {
	t.mu.Lock()
	entry, ok := t.timers[id]
	_, expired := t.expired[id]
	t.mu.Unlock()
	switch {
	case ok:
		return entry.cd.Display()
	case expired:
		return timer.ExpiredLabel
	default:
		return ""
	}
}

func (t *BookingTracker) ActiveCountdowns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Run polls until ctx is cancelled, then stops every countdown.
func (t *BookingTracker) Run(ctx context.Context) error {
	t.logger.Info().
		Str("role", string(t.Role())).
		Dur("interval", t.pollInterval).
		Msg("tracker started")

	sub := t.poller.Subscribe(ctx, t.pollInterval, t.Refresh)
	<-ctx.Done()
	sub.Stop()
	t.Close()

	t.logger.Info().Msg("tracker stopped")
	return nil
}

// Close stops all countdowns. Responses arriving afterwards are dropped.
func (t *BookingTracker) Close() {
	t.mu.Lock()
	t.closed = true
	cds := make([]*timer.Countdown, 0, len(t.timers))
	for id, entry := range t.timers {
		cds = append(cds, entry.cd)
		delete(t.timers, id)
	}
	t.mu.Unlock()

	for _, cd := range cds {
		cd.Stop()
	}
	metrics.SetActiveCountdowns(0)
}
