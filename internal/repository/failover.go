package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"homehelper/internal/domain"
	"homehelper/internal/logging"
	"homehelper/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository serves from primary until it fails, then from
// fallback, probing primary again once per recoveryInterval.
type FailoverSessionRepository struct {
	primary  domain.SessionRepository
	fallback domain.SessionRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logging.Component(logger, "session_failover"),
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary session repository failed, falling back")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether primary is due for a recovery attempt.
func (r *FailoverSessionRepository) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, key string) (*models.Session, error) {
	if !r.isDown.Load() {
		session, err := r.primary.GetSession(ctx, key)
		if err == nil {
			return session, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		session, err := r.primary.GetSession(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			r.logger.Info().Msg("Primary session repository recovered")
			return session, nil
		}
	}

	return r.fallback.GetSession(ctx, key)
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, key string, session *models.Session) error {
	if !r.isDown.Load() {
		err := r.primary.SetSession(ctx, key, session)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetSession(ctx, key, session)
}

func (r *FailoverSessionRepository) ClearSession(ctx context.Context, key string) error {
	// fallback may hold a copy written while primary was down
	_ = r.fallback.ClearSession(ctx, key)

	if !r.isDown.Load() {
		err := r.primary.ClearSession(ctx, key)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return nil
}
