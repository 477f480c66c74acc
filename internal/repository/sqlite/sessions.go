package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/agromarket/internal/session"
)

var _ session.Backend = (*SessionStore)(nil)

// SessionStore is the durable session backend. Expiry is stored as unix
// milliseconds so comparisons do not depend on time formatting.
type SessionStore struct {
	db *DB
}

func (s *SessionStore) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UnixMilli(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	return data, nil
}

// Put upserts the session row; the last writer wins.
func (s *SessionStore) Put(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		id, data, expiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired row and returns how many went.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging sessions: %w", err)
	}
	return res.RowsAffected()
}
