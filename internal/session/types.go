package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no live session exists for an identity.
var ErrNotFound = errors.New("session not found")

// Session is one continuous conversation thread for a conversation identity.
type Session struct {
	Identity  string    `json:"identity"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Resolution is the outcome of resolving a session for a turn. Transient
// marks a session id minted because the durable store was unavailable; it
// is valid for this call only and was not persisted.
type Resolution struct {
	SessionID string
	Created   bool
	Transient bool
}

// Store is the durable session store contract. Get must treat expired
// records as absent; Put overwrites unconditionally (last-writer-wins).
type Store interface {
	Get(ctx context.Context, identity string) (Session, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]Session, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
