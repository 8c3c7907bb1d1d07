package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meal-board/internal/board"
)

// Repository is the SQLite Store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a Repository on an already migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the saved session for chatID, expired or not.
func (r *Repository) Get(ctx context.Context, chatID int64) (Record, error) {
	var (
		stateJSON            string
		updatedAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT state, updated_at, expires_at FROM sessions WHERE chat_id = ?`, chatID,
	).Scan(&stateJSON, &updatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var state board.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return Record{}, fmt.Errorf("failed to decode session state: %w", err)
	}
	return Record{
		ChatID:    chatID,
		State:     state,
		UpdatedAt: time.UnixMilli(updatedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
	}, nil
}

// Save inserts or replaces the session for rec.ChatID.
func (r *Repository) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (chat_id, lang, state, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			lang = excluded.lang,
			state = excluded.state,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		rec.ChatID, string(rec.State.Lang), string(data), rec.UpdatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(),
	)
	return err
}

func (r *Repository) Delete(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID)
	return err
}

// CleanupExpired removes all sessions expired at now.
func (r *Repository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of unexpired sessions at now.
func (r *Repository) Count(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, now.UnixMilli()).Scan(&n)
	return n, err
}
