package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation turns in the conversation_turns table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed turn log.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, turn Turn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, identity, session_id, user_text, assistant_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.Identity, turn.SessionID, turn.UserText, turn.AssistantText, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, identity, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, identity, session_id, user_text, assistant_text, created_at
		 FROM conversation_turns
		 WHERE identity = $1 AND ($2 = '' OR session_id = $2)
		 ORDER BY created_at DESC LIMIT $3`,
		identity, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, limit)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Identity, &t.SessionID, &t.UserText, &t.AssistantText, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	// Reverse into chronological order for transcript reconstruction.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
