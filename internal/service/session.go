package service

import (
	"context"
	"errors"
	"time"

	"homehelper/internal/domain"
	"homehelper/internal/models"

	"github.com/rs/zerolog"
)

var ErrSessionExpired = errors.New("session expired")

type SessionService struct {
	repo   domain.SessionRepository
	now    func() time.Time
	logger *zerolog.Logger
}

func NewSessionService(repo domain.SessionRepository, logger *zerolog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		now:    time.Now,
		logger: logger,
	}
}

// Load returns the stored session for key. A missing session is ErrNoSession;
// an expired one is cleared and reported as ErrSessionExpired.
func (s *SessionService) Load(ctx context.Context, key string) (*models.Session, error) {
	session, err := s.repo.GetSession(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to get session")
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}

	if !session.Valid(s.now()) {
		s.logger.Info().Str("key", key).Msg("session expired, clearing")
		if err := s.repo.ClearSession(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to clear expired session")
		}
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Save stores a session, stamping SavedAt.
func (s *SessionService) Save(ctx context.Context, key string, session *models.Session) error {
	if session == nil || session.Token == "" {
		return ErrNoSession
	}
	session.SavedAt = s.now().UTC()
	return s.repo.SetSession(ctx, key, session)
}

func (s *SessionService) Clear(ctx context.Context, key string) error {
	return s.repo.ClearSession(ctx, key)
}

// Bootstrap loads the session for key and falls back to seed when none is
// stored, persisting the seed for later runs.
func (s *SessionService) Bootstrap(ctx context.Context, key string, seed *models.Session) (*models.Session, error) {
	session, err := s.Load(ctx, key)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrSessionExpired):
	default:
		return nil, err
	}

	if seed == nil || seed.Token == "" {
		return nil, err
	}
	if !seed.Valid(s.now()) {
		return nil, ErrSessionExpired
	}
	if err := s.Save(ctx, key, seed); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to persist session")
	}
	return seed, nil
}
