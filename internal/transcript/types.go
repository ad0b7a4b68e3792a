package transcript

import (
	"context"
	"time"
)

// Turn is one exchange: the user message and the assistant reply,
// attributed to a conversation identity and a session. Append-only.
type Turn struct {
	ID            string    `json:"id"`
	Identity      string    `json:"identity"`
	SessionID     string    `json:"session_id"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the append-only turn log contract. Recent returns turns in
// chronological order; an empty sessionID matches all sessions of the
// identity.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	Recent(ctx context.Context, identity, sessionID string, limit int) ([]Turn, error)
}
