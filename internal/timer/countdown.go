package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	Placeholder  = "--:--"
	ExpiredLabel = "Expired"
)

// Countdown tracks a single response deadline. It recomputes the remaining
// whole seconds once on start and then on every tick, and calls onExpire
// exactly once when the remainder reaches zero. A Countdown without a deadline
// renders nothing and never fires.
type Countdown struct {
	mu       sync.Mutex
	now      func() time.Time
	tick     time.Duration
	onExpire func()
	logger   *zerolog.Logger

	deadline  *time.Time
	remaining int
	computed  bool
	fired     bool
	firing    bool

	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Countdown)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Countdown) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTick overrides the one-second recompute interval.
func WithTick(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.tick = d
		}
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Countdown) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a countdown and starts it when expiresAt is set.
func New(expiresAt *time.Time, onExpire func(), opts ...Option) *Countdown {
	nop := zerolog.Nop()
	c := &Countdown{
		now:      time.Now,
		tick:     time.Second,
		onExpire: onExpire,
		logger:   &nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset(expiresAt)
	return c
}

// Reset restarts the countdown against a new deadline. The previous ticking
// goroutine is fully stopped before the new one starts. Resetting to the
// deadline already running is a no-op.
func (c *Countdown) Reset(expiresAt *time.Time) {
	c.mu.Lock()
	if sameDeadline(c.deadline, expiresAt) && (c.done != nil || expiresAt == nil) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deadline = nil
	c.computed = false
	c.fired = false
	c.remaining = 0
	if expiresAt == nil {
		return
	}

	deadline := *expiresAt
	c.deadline = &deadline
	c.remaining = secondsUntil(deadline, c.now())
	c.computed = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go c.run(ctx, c.gen, deadline, done)
}

// Stop releases the ticker and waits for the goroutine to exit. It never
// fires onExpire and is safe to call any number of times, including from
// inside onExpire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.gen++
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	firing := c.firing
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil && !firing {
		<-done
	}
}

// Remaining returns the last computed whole seconds and whether a value has
// been computed at all.
func (c *Countdown) Remaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.computed
}

// Expired reports whether the countdown reached zero.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computed && c.remaining <= 0
}

func (c *Countdown) Deadline() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline == nil {
		return nil
	}
	d := *c.deadline
	return &d
}

// Display renders the remaining time; empty when there is no deadline.
func (c *Countdown) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline == nil {
		return ""
	}
	return Format(c.remaining, c.computed)
}

// Format renders seconds as mm:ss, "Expired" at or below zero and a
// placeholder when nothing was computed yet.
func Format(seconds int, computed bool) string {
	if !computed {
		return Placeholder
	}
	if seconds <= 0 {
		return ExpiredLabel
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (c *Countdown) run(ctx context.Context, gen uint64, deadline time.Time, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	if c.update(gen, deadline) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.update(gen, deadline) {
				return
			}
		}
	}
}

// update recomputes the remainder and reports whether ticking should stop.
func (c *Countdown) update(gen uint64, deadline time.Time) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return true
	}
	remaining := secondsUntil(deadline, c.now())
	if remaining > c.remaining && c.computed {
		// clock went backwards; keep the display non-increasing
		remaining = c.remaining
	}
	c.remaining = remaining
	c.computed = true
	if remaining > 0 {
		c.mu.Unlock()
		return false
	}
	fire := !c.fired
	c.fired = true
	c.firing = fire
	c.mu.Unlock()

	if fire {
		c.fire()
		c.mu.Lock()
		c.firing = false
		c.mu.Unlock()
	}
	return true
}

func (c *Countdown) fire() {
	if c.onExpire == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("countdown: onExpire panicked")
		}
	}()
	c.onExpire()
}

func secondsUntil(deadline, now time.Time) int {
	diff := deadline.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(diff / time.Second)
}

func sameDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
