package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"homehelper/internal/logging"
	"homehelper/internal/metrics"

	"github.com/rs/zerolog"
)

// PollFunc is one poll cycle. It receives the subscription context.
type PollFunc func(ctx context.Context) error

// Poller runs periodic callbacks for as long as their subscription lives.
type Poller struct {
	logger *zerolog.Logger
}

func NewPoller(logger *zerolog.Logger) *Poller {
	return &Poller{logger: logging.Component(logger, "poller")}
}

// Subscription is a handle on one running poll loop.
type Subscription struct {
	cancel  context.CancelFunc
	done    chan struct{}
	inner   sync.WaitGroup
	once    sync.Once
	running atomic.Bool
	skipped atomic.Int64
	runs    atomic.Int64
}

// Subscribe calls fn once immediately and then every interval until ctx is
// cancelled or Stop is called. A cycle that is still running when the next
// tick arrives causes that tick to be skipped, not queued.
func (p *Poller) Subscribe(ctx context.Context, interval time.Duration, fn PollFunc) *Subscription {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		p.trigger(ctx, sub, fn)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.trigger(ctx, sub, fn)
			}
		}
	}()

	return sub
}

func (p *Poller) trigger(ctx context.Context, sub *Subscription, fn PollFunc) {
	if !sub.running.CompareAndSwap(false, true) {
		sub.skipped.Add(1)
		metrics.IncPoll("skipped")
		p.logger.Debug().Msg("previous poll still running, tick skipped")
		return
	}

	sub.inner.Add(1)
	go func() {
		defer sub.inner.Done()
		defer sub.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				metrics.IncPoll("panic")
				p.logger.Error().Interface("panic", r).Msg("poll callback panicked")
			}
		}()

		sub.runs.Add(1)
		if err := fn(ctx); err != nil {
			metrics.IncPoll("error")
			p.logger.Warn().Err(err).Msg("poll failed")
			return
		}
		metrics.IncPoll("ok")
	}()
}

// Stop cancels the loop and waits for an in-flight cycle to return. It is
// idempotent and must not be called from inside the callback.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
	<-s.done
	s.inner.Wait()
}

// Done is closed once the loop goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Runs() int64 {
	return s.runs.Load()
}

func (s *Subscription) Skipped() int64 {
	return s.skipped.Load()
}
