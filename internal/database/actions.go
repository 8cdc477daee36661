package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homehelper/internal/models"
)

// LogAction записывает результат действия над бронированием
func (db *DB) LogAction(ctx context.Context, entry *models.ActionLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	// время хранится в UTC, иначе строковое сравнение created_at ломается
	entry.CreatedAt = entry.CreatedAt.UTC()

	result, err := db.db.ExecContext(ctx, `
        INSERT INTO action_log (action, booking_id, user_id, result, message, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `,
		string(entry.Action),
		entry.BookingID,
		entry.UserID,
		string(entry.Result),
		entry.Message,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// RecentActions возвращает действия начиная с since, новые первыми
func (db *DB) RecentActions(ctx context.Context, since time.Time, limit int) ([]*models.ActionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.db.QueryContext(ctx, `
        SELECT id, action, booking_id, user_id, result, message, created_at
        FROM action_log
        WHERE created_at >= ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActionLogEntry
	for rows.Next() {
		var (
			e       models.ActionLogEntry
			action  string
			result  string
			userID  sql.NullString
			message sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.BookingID, &userID, &result, &message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = models.Action(action)
		e.Result = models.ActionResult(result)
		e.UserID = userID.String
		e.Message = message.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
