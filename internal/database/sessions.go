package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homehelper/internal/models"
)

// GetSession возвращает сохраненную сессию или nil
func (db *DB) GetSession(ctx context.Context, key string) (*models.Session, error) {
	query := `
        SELECT token, user_id, user_name, user_email, user_role, user_image_url, saved_at, expires_at
        FROM sessions WHERE key = ?
    `

	var (
		s         models.Session
		name      sql.NullString
		email     sql.NullString
		imageURL  sql.NullString
		role      string
		expiresAt sql.NullTime
	)
	err := db.db.QueryRowContext(ctx, query, key).Scan(
		&s.Token, &s.User.ID, &name, &email, &role, &imageURL, &s.SavedAt, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		return nil, nil
	}

	s.User.Name = name.String
	s.User.Email = email.String
	s.User.ImageURL = imageURL.String
	s.User.Role = models.Role(role)
	return &s, nil
}

// SetSession сохраняет сессию; срок жизни берется из exp токена
func (db *DB) SetSession(ctx context.Context, key string, session *models.Session) error {
	query := `
        INSERT INTO sessions (key, token, user_id, user_name, user_email, user_role, user_image_url, saved_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            token = excluded.token,
            user_id = excluded.user_id,
            user_name = excluded.user_name,
            user_email = excluded.user_email,
            user_role = excluded.user_role,
            user_image_url = excluded.user_image_url,
            saved_at = excluded.saved_at,
            expires_at = excluded.expires_at
    `

	savedAt := session.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	var expiresAt sql.NullTime
	if exp, ok := session.ExpiresAt(); ok {
		expiresAt = sql.NullTime{Time: exp, Valid: true}
	}

	_, err := db.db.ExecContext(ctx, query,
		key,
		session.Token,
		session.User.ID,
		session.User.Name,
		session.User.Email,
		string(session.User.Role),
		session.User.ImageURL,
		savedAt,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (db *DB) ClearSession(ctx context.Context, key string) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
