package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Manager owns session lifecycle: lookup, rolling expiry refresh, and
// creation. No other component writes session records.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager with the given rolling TTL.
func NewManager(log *slog.Logger, store Store, ttl time.Duration) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: log.With(slog.String("component", "session")),
		now:    time.Now,
	}
}

// Resolve returns the live session id for an identity, refreshing its
// expiry, or mints and persists a new one when none exists. A store failure
// never fails the turn: the manager degrades to a transient session id,
// trading continuity for availability.
func (m *Manager) Resolve(ctx context.Context, identity string) Resolution {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	existing, err := m.store.Get(ctx, identity)
	switch {
	case err == nil:
		refreshed := existing
		refreshed.ExpiresAt = expiresAt
		if putErr := m.store.Put(ctx, refreshed); putErr != nil {
			m.logger.Warn("session expiry refresh failed",
				slog.String("identity", identity),
				slog.Any("error", putErr),
			)
		}
		return Resolution{SessionID: existing.SessionID}
	case errors.Is(err, ErrNotFound):
		created := Session{
			Identity:  identity,
			SessionID: uuid.NewString(),
			ExpiresAt: expiresAt,
		}
		if putErr := m.store.Put(ctx, created); putErr != nil {
			m.logger.Warn("session create failed, using transient session",
				slog.String("identity", identity),
				slog.Any("error", putErr),
			)
			return Resolution{SessionID: created.SessionID, Transient: true}
		}
		m.logger.Info("session created",
			slog.String("identity", identity),
			slog.String("session_id", created.SessionID),
		)
		return Resolution{SessionID: created.SessionID, Created: true}
	default:
		m.logger.Warn("session lookup failed, using transient session",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
		return Resolution{SessionID: uuid.NewString(), Transient: true}
	}
}
