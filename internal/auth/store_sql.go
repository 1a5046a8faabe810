package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trafficnotes/internal/database"
)

// SQLBackend stores sessions in the sessions table.
type SQLBackend struct {
	db  *database.DB
	now func() time.Time
}

func NewSQLBackend(db *database.DB) *SQLBackend {
	return &SQLBackend{db: db, now: time.Now}
}

func (b *SQLBackend) Load(ctx context.Context, id string) (string, error) {
	var data string
	err := b.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE id = ? AND expires_at > ?",
		id, b.now().UTC(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

func (b *SQLBackend) Save(ctx context.Context, id, data string, expiresAt time.Time) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		id, data, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Cleanup removes expired sessions.
func (b *SQLBackend) Cleanup(ctx context.Context) (int64, error) {
	result, err := b.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", b.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return result.RowsAffected()
}
