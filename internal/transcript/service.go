package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service records and reads conversation turns.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a transcript service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("component", "transcript")),
		now:    time.Now,
	}
}

// Record appends one turn, timestamped at call time. Callers on the reply
// path treat failure as best-effort; the error is returned for logging.
func (s *Service) Record(ctx context.Context, identity, sessionID, userText, assistantText string) error {
	if strings.TrimSpace(identity) == "" || strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("identity and session id are required")
	}
	turn := Turn{
		ID:            uuid.NewString(),
		Identity:      identity,
		SessionID:     sessionID,
		UserText:      userText,
		AssistantText: assistantText,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Append(ctx, turn); err != nil {
		return err
	}
	s.logger.Debug("turn recorded",
		slog.String("identity", identity),
		slog.String("session_id", sessionID),
	)
	return nil
}

// Recent returns up to limit most recent turns for the session, oldest first.
func (s *Service) Recent(ctx context.Context, identity, sessionID string, limit int) ([]Turn, error) {
	return s.store.Recent(ctx, identity, sessionID, limit)
}
