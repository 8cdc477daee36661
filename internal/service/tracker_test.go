package service

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homehelper/internal/events"
	"homehelper/internal/failure"
	"homehelper/internal/models"
	"homehelper/internal/notify"
	"homehelper/internal/timer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) records(args mock.Arguments) ([]models.BookingRecord, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingRecord), args.Error(1)
}

func (m *mockAPI) ProviderBookings(ctx context.Context) ([]models.BookingRecord, error) {
	return m.records(m.Called(ctx))
}
func (m *mockAPI) ProviderCompletedBookings(ctx context.Context) ([]models.BookingRecord, error) {
	return m.records(m.Called(ctx))
}
func (m *mockAPI) InstantRequests(ctx context.Context) ([]models.BookingRecord, error) {
	return m.records(m.Called(ctx))
}
func (m *mockAPI) CustomerBookings(ctx context.Context) ([]models.BookingRecord, error) {
	return m.records(m.Called(ctx))
}
func (m *mockAPI) AcceptBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockAPI) RejectBooking(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}
func (m *mockAPI) CompleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockAPI) AcceptInstant(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockAPI) RejectInstant(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockAPI) CancelBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockActionLog struct {
	mock.Mock
}

func (m *mockActionLog) LogAction(ctx context.Context, entry *models.ActionLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}
func (m *mockActionLog) RecentActions(ctx context.Context, since time.Time, limit int) ([]*models.ActionLogEntry, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ActionLogEntry), args.Error(1)
}

type confirmFunc func(ctx context.Context, prompt string) bool

func (f confirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

func alwaysConfirm() confirmFunc {
	return func(context.Context, string) bool { return true }
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type toastRecorder struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (r *toastRecorder) Notify(_ context.Context, toast notify.Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, toast)
	r.mu.Unlock()
}

func (r *toastRecorder) All() []notify.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Toast(nil), r.toasts...)
}

func (r *toastRecorder) Titles(status notify.Status) []string {
	var out []string
	for _, t := range r.All() {
		if t.Status == status {
			out = append(out, t.Title)
		}
	}
	return out
}

type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) handle(e *events.Event) error {
	r.mu.Lock()
	r.types = append(r.types, e.Type)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) Has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	tracker *BookingTracker
	api     *mockAPI
	toasts  *toastRecorder
	events  *eventRecorder
	clock   *fakeClock
}

var baseTime = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, role models.Role, opts ...TrackerOption) *harness {
	t.Helper()
	h := &harness{
		api:    new(mockAPI),
		toasts: &toastRecorder{},
		events: &eventRecorder{},
		clock:  &fakeClock{now: baseTime},
	}
	bus := events.NewEventBus()
	bus.SubscribeMany(append(append([]string(nil), events.LifecycleEvents...), events.EventBookingsRefreshed), h.events.handle)

	logger := zerolog.Nop()
	session := &models.Session{Token: "opaque", User: models.User{ID: "u1", Role: role}}
	opts = append([]TrackerOption{WithClock(h.clock.Now), WithTick(5 * time.Millisecond)}, opts...)

	tr, err := NewBookingTracker(h.api, session, h.toasts, bus, &logger, opts...)
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	h.tracker = tr
	return h
}

// stubProvider answers the three provider lists once each.
func (h *harness) stubProvider(active, completed, instant []models.BookingRecord) {
	h.api.On("ProviderBookings", mock.Anything).Return(active, nil).Once()
	h.api.On("ProviderCompletedBookings", mock.Anything).Return(completed, nil).Once()
	h.api.On("InstantRequests", mock.Anything).Return(instant, nil).Once()
}

func pending(id string, expiresIn time.Duration) models.BookingRecord {
	deadline := baseTime.Add(expiresIn)
	return models.BookingRecord{
		ID:               id,
		RequestType:      models.RequestScheduled,
		Status:           models.StatusPending,
		BookingExpiresAt: &deadline,
		ServiceName:      "Cleaning",
		Customer:         &models.Party{Name: "Ayesha"},
	}
}

func instant(id string, expiresIn time.Duration) models.BookingRecord {
	rec := pending(id, expiresIn)
	rec.RequestType = models.RequestInstant
	return rec
}

func recordIDs(records []models.BookingRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestNewBookingTracker_RequiresSession(t *testing.T) {
	_, err := NewBookingTracker(new(mockAPI), nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = NewBookingTracker(new(mockAPI), &models.Session{Token: "x", User: models.User{Role: "admin"}}, nil, nil, nil)
	assert.Error(t, err)
}

func TestTracker_RejectEmptyReasonNeverCallsBackend(t *testing.T) {
	h := newHarness(t, models.RoleProvider)

	for _, reason := range []string{"", "   ", "\t\n"} {
		err := h.tracker.Reject(context.Background(), "b1", reason)
		require.Error(t, err)
		assert.True(t, failure.Is(err, failure.KindValidation))
	}

	h.api.AssertNotCalled(t, "RejectBooking", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{"Reason required", "Reason required", "Reason required"}, h.toasts.Titles(notify.StatusError))
}

func TestTracker_RejectSendsTrimmedReason(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	h.api.On("RejectBooking", mock.Anything, "b1", "Too far away").Return(nil).Once()
	h.stubProvider(nil, nil, nil)

	require.NoError(t, h.tracker.Reject(context.Background(), "b1", "  Too far away "))

	h.api.AssertExpectations(t)
	assert.Equal(t, []string{"Booking rejected"}, h.toasts.Titles(notify.StatusInfo))
	assert.True(t, h.events.Has(events.EventBookingRejected))
}

func TestTracker_AcceptSuccessRefreshes(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	accepted := pending("b1", time.Hour)
	accepted.Status = models.StatusBookingAccepted

	h.api.On("AcceptBooking", mock.Anything, "b1").Return(nil).Once()
	h.stubProvider([]models.BookingRecord{accepted}, nil, nil)

	require.NoError(t, h.tracker.Accept(context.Background(), "b1"))

	h.api.AssertNumberOfCalls(t, "ProviderBookings", 1)
	assert.Empty(t, h.toasts.Titles(notify.StatusError))
	assert.Equal(t, []string{"Booking accepted"}, h.toasts.Titles(notify.StatusSuccess))
	assert.True(t, h.events.Has(events.EventBookingAccepted))
	assert.True(t, h.events.Has(events.EventBookingsRefreshed))

	recs := h.tracker.Records(ListActive)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusBookingAccepted, recs[0].Status)
}

func TestTracker_ActionFailureKeepsState(t *testing.T) {
	h := newHarness(t, models.RoleProvider, WithConfirmer(alwaysConfirm()))
	inProgress := pending("b1", 0)
	inProgress.Status = models.StatusInProgress
	inProgress.BookingExpiresAt = nil
	h.stubProvider([]models.BookingRecord{inProgress}, nil, nil)
	require.NoError(t, h.tracker.Refresh(context.Background()))

	h.api.On("CompleteBooking", mock.Anything, "b1").Return(failure.Backend(409, "Booking is not in progress")).Once()

	err := h.tracker.Complete(context.Background(), "b1")
	require.Error(t, err)

	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.StatusError, toasts[0].Status)
	assert.Equal(t, "Unable to complete booking", toasts[0].Title)
	assert.Equal(t, "Booking is not in progress", toasts[0].Message)

	// no refresh after a failure
	h.api.AssertNumberOfCalls(t, "ProviderBookings", 1)
	assert.Equal(t, models.StatusInProgress, h.tracker.Records(ListActive)[0].Status)
	assert.False(t, h.events.Has(events.EventBookingCompleted))
}

func TestTracker_PanickingAPIBecomesFailure(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	h.api.On("AcceptBooking", mock.Anything, "b1").Panic("boom").Once()

	var err error
	assert.NotPanics(t, func() { err = h.tracker.Accept(context.Background(), "b1") })
	require.Error(t, err)
	assert.Equal(t, failure.KindBackend, failure.KindOf(err))
	assert.Equal(t, []string{"Unable to accept booking"}, h.toasts.Titles(notify.StatusError))
}

func TestTracker_ConfirmationDeclined(t *testing.T) {
	actionLog := new(mockActionLog)
	actionLog.On("LogAction", mock.Anything, mock.MatchedBy(func(e *models.ActionLogEntry) bool {
		return e.Result == models.ResultDeclined && e.Action == models.ActionCancel && e.UserID == "u1"
	})).Return(nil).Once()

	var prompts []string
	confirmer := confirmFunc(func(_ context.Context, prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	})
	h := newHarness(t, models.RoleCustomer, WithConfirmer(confirmer), WithActionLog(actionLog))

	err := h.tracker.Cancel(context.Background(), "b1")
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, []string{"Are you sure you want to cancel this booking?"}, prompts)
	h.api.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	assert.Empty(t, h.toasts.All())
	actionLog.AssertExpectations(t)
}

func TestTracker_InstantActions(t *testing.T) {
	h := newHarness(t, models.RoleProvider, WithConfirmer(alwaysConfirm()))
	h.api.On("AcceptInstant", mock.Anything, "i1").Return(nil).Once()
	h.api.On("RejectInstant", mock.Anything, "i2").Return(failure.Network(assert.AnError)).Once()
	h.stubProvider(nil, nil, nil)

	require.NoError(t, h.tracker.AcceptInstant(context.Background(), "i1"))
	err := h.tracker.RejectInstant(context.Background(), "i2")
	require.Error(t, err)

	toasts := h.toasts.All()
	require.Len(t, toasts, 2)
	assert.Equal(t, "Request accepted!", toasts[0].Title)
	assert.Equal(t, "Customer has been notified.", toasts[0].Message)
	assert.Equal(t, "Unable to reject", toasts[1].Title)
	assert.Equal(t, failure.MessageNetwork, toasts[1].Message)
	assert.True(t, h.events.Has(events.EventInstantRequestAccepted))
}

func TestTracker_RefreshFailureKeepsList(t *testing.T) {
	h := newHarness(t, models.RoleCustomer)
	first := []models.BookingRecord{pending("b1", time.Hour)}
	h.api.On("CustomerBookings", mock.Anything).Return(first, nil).Once()
	h.api.On("CustomerBookings", mock.Anything).Return(nil, failure.Network(assert.AnError)).Once()

	require.NoError(t, h.tracker.Refresh(context.Background()))
	require.Error(t, h.tracker.Refresh(context.Background()))

	assert.Equal(t, []string{"b1"}, recordIDs(h.tracker.Records(ListBookings)))
	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Bookings error", toasts[0].Title)
	assert.Equal(t, failure.MessageNetwork, toasts[0].Message)
}

func TestTracker_LastArrivingResponseWins(t *testing.T) {
	h := newHarness(t, models.RoleCustomer)
	started := make(chan struct{})
	release := make(chan struct{})

	older := []models.BookingRecord{{ID: "old", Status: models.StatusBooked}}
	newer := []models.BookingRecord{{ID: "new", Status: models.StatusBooked}}

	h.api.On("CustomerBookings", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(older, nil).Once()
	h.api.On("CustomerBookings", mock.Anything).Return(newer, nil).Once()

	done := make(chan error, 1)
	go func() { done <- h.tracker.Refresh(context.Background()) }()
	<-started

	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.Equal(t, []string{"new"}, recordIDs(h.tracker.Records(ListBookings)))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"old"}, recordIDs(h.tracker.Records(ListBookings)))
}

func TestTracker_ExpiryExcludesFromPending(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	h.stubProvider([]models.BookingRecord{pending("b1", 30*time.Second), pending("b2", time.Hour)}, nil, nil)
	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.Equal(t, 2, h.tracker.ActiveCountdowns())

	h.clock.Advance(31 * time.Second)
	require.Eventually(t, func() bool {
		return h.tracker.Expired("b1") && len(h.toasts.Titles(notify.StatusInfo)) == 1
	}, time.Second, 5*time.Millisecond)

	snap := h.tracker.Snapshot(h.clock.Now())
	assert.Equal(t, []string{"b2"}, recordIDs(snap.Pending))
	assert.Equal(t, timer.ExpiredLabel, snap.Countdowns["b1"])
	assert.Equal(t, 1, snap.Counts.Pending)

	expiry := h.toasts.All()
	require.Len(t, expiry, 1)
	assert.Equal(t, "Booking Expired", expiry[0].Title)
	assert.Equal(t, "A booking request has expired and was removed.", expiry[0].Message)
	assert.True(t, h.events.Has(events.EventBookingExpired))
	assert.Equal(t, 1, h.tracker.ActiveCountdowns())

	// the list itself is untouched until the backend says otherwise
	assert.Equal(t, models.StatusPending, h.tracker.Records(ListActive)[0].Status)
}

func TestTracker_ExpiredRecordNotRearmedUntilDeadlineMoves(t *testing.T) {
	h := newHarness(t, models.RoleCustomer)
	stale := pending("b1", -time.Second)
	h.api.On("CustomerBookings", mock.Anything).Return([]models.BookingRecord{stale}, nil).Twice()

	require.NoError(t, h.tracker.Refresh(context.Background()))
	require.Eventually(t, func() bool {
		return h.tracker.Expired("b1") && len(h.toasts.Titles(notify.StatusInfo)) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.tracker.Refresh(context.Background()))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.toasts.Titles(notify.StatusInfo), 1, "expiry announced once")
	assert.Equal(t, 0, h.tracker.ActiveCountdowns())

	extended := pending("b1", 10*time.Minute)
	h.api.On("CustomerBookings", mock.Anything).Return([]models.BookingRecord{extended}, nil).Once()
	require.NoError(t, h.tracker.Refresh(context.Background()))

	assert.False(t, h.tracker.Expired("b1"))
	assert.Equal(t, 1, h.tracker.ActiveCountdowns())
	assert.Equal(t, "10:00", h.tracker.Countdown("b1"))
}

func TestTracker_ExpiryBeatsInFlightAction(t *testing.T) {
	h := newHarness(t, models.RoleProvider, WithConfirmer(alwaysConfirm()))
	h.stubProvider(nil, nil, []models.BookingRecord{instant("i1", 10*time.Second)})
	require.NoError(t, h.tracker.Refresh(context.Background()))

	started := make(chan struct{})
	release := make(chan struct{})
	h.api.On("AcceptInstant", mock.Anything, "i1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	done := make(chan error, 1)
	go func() { done <- h.tracker.AcceptInstant(context.Background(), "i1") }()
	<-started
	assert.True(t, h.tracker.InFlight("i1"))

	h.clock.Advance(11 * time.Second)
	require.Eventually(t, func() bool {
		return h.tracker.Expired("i1") && len(h.toasts.Titles(notify.StatusInfo)) == 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	err := <-done
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindStale))

	expiry := h.toasts.All()
	require.Len(t, expiry, 1)
	assert.Equal(t, "Request Expired", expiry[0].Title)
	assert.Equal(t, "An instant booking request has expired and was removed.", expiry[0].Message)
	assert.Empty(t, h.toasts.Titles(notify.StatusSuccess))
	assert.Empty(t, h.toasts.Titles(notify.StatusError))
	assert.True(t, h.events.Has(events.EventInstantRequestExpired))
	assert.False(t, h.events.Has(events.EventInstantRequestAccepted))
	h.api.AssertNumberOfCalls(t, "InstantRequests", 1)
	assert.False(t, h.tracker.InFlight("i1"))
}

func TestTracker_ExpiryOutlivesRefreshDuringAction(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	h.stubProvider([]models.BookingRecord{pending("b1", 1500*time.Millisecond)}, nil, nil)
	require.NoError(t, h.tracker.Refresh(context.Background()))

	started := make(chan struct{})
	release := make(chan struct{})
	h.api.On("AcceptBooking", mock.Anything, "b1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(failure.Backend(409, "booking expired on server")).Once()

	done := make(chan error, 1)
	go func() { done <- h.tracker.Accept(context.Background(), "b1") }()
	<-started

	h.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return h.tracker.Expired("b1") && len(h.toasts.Titles(notify.StatusInfo)) == 1
	}, time.Second, 5*time.Millisecond)

	// the backend already dropped b1; the local expiry mark goes with it
	h.stubProvider(nil, nil, nil)
	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.False(t, h.tracker.Expired("b1"))

	close(release)
	err := <-done
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindStale))

	assert.Equal(t, []string{"Booking Expired"}, h.toasts.Titles(notify.StatusInfo))
	assert.Empty(t, h.toasts.Titles(notify.StatusError))
	assert.False(t, h.events.Has(events.EventBookingAccepted))
	h.api.AssertNumberOfCalls(t, "ProviderBookings", 2)
	assert.False(t, h.tracker.InFlight("b1"))
}

func TestTracker_PromptedActionsNeedConfirmer(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	ctx := context.Background()

	assert.ErrorIs(t, h.tracker.Complete(ctx, "b1"), ErrDeclined)
	assert.ErrorIs(t, h.tracker.Cancel(ctx, "b1"), ErrDeclined)
	assert.ErrorIs(t, h.tracker.AcceptInstant(ctx, "i1"), ErrDeclined)
	assert.ErrorIs(t, h.tracker.RejectInstant(ctx, "i1"), ErrDeclined)

	h.api.AssertNotCalled(t, "CompleteBooking", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "AcceptInstant", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "RejectInstant", mock.Anything, mock.Anything)
	assert.Empty(t, h.toasts.All())
}

func TestTracker_WarnsOnUnexpectedSourceStatus(t *testing.T) {
	var buf syncBuffer
	logger := zerolog.New(&buf)
	api := new(mockAPI)
	session := &models.Session{Token: "opaque", User: models.User{ID: "u1", Role: models.RoleProvider}}
	tr, err := NewBookingTracker(api, session, &toastRecorder{}, nil, &logger,
		WithConfirmer(alwaysConfirm()), WithClock(func() time.Time { return baseTime }))
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	done := models.BookingRecord{ID: "c1", Status: models.StatusCompleted}
	for i := 0; i < 2; i++ {
		api.On("ProviderBookings", mock.Anything).Return([]models.BookingRecord{}, nil).Once()
		api.On("ProviderCompletedBookings", mock.Anything).Return([]models.BookingRecord{done}, nil).Once()
		api.On("InstantRequests", mock.Anything).Return([]models.BookingRecord{}, nil).Once()
	}
	require.NoError(t, tr.Refresh(context.Background()))

	api.On("CompleteBooking", mock.Anything, "c1").Return(nil).Once()
	require.NoError(t, tr.Complete(context.Background(), "c1"))

	assert.Contains(t, buf.String(), "record not in a source status for this action")
	assert.Contains(t, buf.String(), `"from":"completed"`)
	api.AssertExpectations(t)
}

func TestTracker_VanishedRecordStopsCountdown(t *testing.T) {
	h := newHarness(t, models.RoleCustomer)
	h.api.On("CustomerBookings", mock.Anything).Return([]models.BookingRecord{pending("b1", time.Minute)}, nil).Once()
	h.api.On("CustomerBookings", mock.Anything).Return([]models.BookingRecord{}, nil).Once()

	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.Equal(t, 1, h.tracker.ActiveCountdowns())

	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.Equal(t, 0, h.tracker.ActiveCountdowns())
	assert.Equal(t, "", h.tracker.Countdown("b1"))
}

func TestTracker_CloseStopsEverything(t *testing.T) {
	h := newHarness(t, models.RoleCustomer)
	h.api.On("CustomerBookings", mock.Anything).Return([]models.BookingRecord{pending("b1", time.Minute), pending("b2", time.Minute)}, nil).Once()
	h.api.On("CustomerBookings", mock.Anything).Return([]models.BookingRecord{}, nil).Once()

	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.Equal(t, 2, h.tracker.ActiveCountdowns())

	h.tracker.Close()
	assert.Equal(t, 0, h.tracker.ActiveCountdowns())

	h.clock.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.toasts.All(), "stopped countdowns never fire")

	require.NoError(t, h.tracker.Refresh(context.Background()))
	assert.Len(t, h.tracker.Records(ListBookings), 2, "responses after close are dropped")
}

func TestTracker_RunPollsUntilCancelled(t *testing.T) {
	h := newHarness(t, models.RoleCustomer, WithPollInterval(10*time.Millisecond))
	var polls atomic.Int32
	h.api.On("CustomerBookings", mock.Anything).Run(func(mock.Arguments) {
		polls.Add(1)
	}).Return([]models.BookingRecord{pending("b1", time.Hour)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.tracker.Run(ctx) }()

	require.Eventually(t, func() bool { return polls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.tracker.ActiveCountdowns())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, h.tracker.ActiveCountdowns())
}

func TestTracker_Snapshot(t *testing.T) {
	h := newHarness(t, models.RoleProvider)
	upcoming := baseTime.Add(48 * time.Hour)
	amount := func(v float64) *float64 { return &v }

	active := []models.BookingRecord{
		pending("p1", 10*time.Minute),
		{ID: "a1", Status: models.StatusInProgress, RequestedDateTime: &upcoming},
	}
	completed := []models.BookingRecord{
		{ID: "c1", Status: models.StatusCompleted, TotalAmount: amount(100)},
		{ID: "c2", Status: models.StatusCompleted, TotalAmount: amount(250)},
	}
	h.stubProvider(active, completed, []models.BookingRecord{instant("i1", 10*time.Minute)})
	require.NoError(t, h.tracker.Refresh(context.Background()))

	snap := h.tracker.Snapshot(h.clock.Now())
	assert.Equal(t, models.RoleProvider, snap.Role)
	assert.Equal(t, []string{"p1"}, recordIDs(snap.Pending))
	assert.Equal(t, []string{"p1", "a1"}, recordIDs(snap.Active))
	assert.Equal(t, []string{"c1", "c2"}, recordIDs(snap.Completed))
	assert.Equal(t, []string{"i1"}, recordIDs(snap.Instant))
	assert.Equal(t, 1, snap.Counts.Pending)
	assert.Equal(t, 2, snap.Counts.Active)
	assert.Equal(t, 2, snap.Counts.Completed)
	assert.InDelta(t, 350.0, snap.CompletedSpend, 0.001)

	require.NotNil(t, snap.Featured)
	assert.Equal(t, "c2", snap.Featured.Record.ID)
	require.NotNil(t, snap.Next)
	assert.Equal(t, "a1", snap.Next.ID)

	assert.Equal(t, "10:00", snap.Countdowns["p1"])
	assert.Equal(t, "10:00", snap.Countdowns["i1"])

	// snapshots are copies
	snap.Pending[0].Status = models.StatusCancelled
	assert.Equal(t, models.StatusPending, h.tracker.Records(ListActive)[0].Status)
}
