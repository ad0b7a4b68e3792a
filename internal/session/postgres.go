package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in the sessions table. Expiry is honored
// passively: expired rows read as not-found and are purged by the sweeper.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, identity string) (Session, error) {
	var out Session
	err := s.pool.QueryRow(ctx,
		`SELECT identity, session_id, expires_at FROM sessions
		 WHERE identity = $1 AND expires_at > now()`,
		identity,
	).Scan(&out.Identity, &out.SessionID, &out.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Put(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (identity, session_id, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identity) DO UPDATE
		 SET session_id = EXCLUDED.session_id,
		     expires_at = EXCLUDED.expires_at,
		     updated_at = now()`,
		sess.Identity, sess.SessionID, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT identity, session_id, expires_at FROM sessions
		 WHERE expires_at > now() ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Identity, &sess.SessionID, &sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
