package repository

import (
	"context"
	"sync"
	"time"

	"homehelper/internal/models"
)

type entry struct {
	session   models.Session
	expiresAt time.Time
}

// MemorySessionRepository keeps sessions in process. A zero ttl never expires.
type MemorySessionRepository struct {
	sessions sync.Map
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, key string) (*models.Session, error) {
	val, ok := r.sessions.Load(key)
	if !ok {
		return nil, nil
	}
	e := val.(*entry)
	if !e.expiresAt.IsZero() && r.now().After(e.expiresAt) {
		r.sessions.Delete(key)
		return nil, nil
	}
	s := e.session
	return &s, nil
}

func (r *MemorySessionRepository) SetSession(ctx context.Context, key string, session *models.Session) error {
	e := &entry{session: *session}
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}
	r.sessions.Store(key, e)
	return nil
}

func (r *MemorySessionRepository) ClearSession(ctx context.Context, key string) error {
	r.sessions.Delete(key)
	return nil
}
