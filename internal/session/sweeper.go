package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes expired session rows. The store already
// treats expired rows as absent; the sweeper only reclaims space.
type Sweeper struct {
	store    Store
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewSweeper creates a sweeper running on the given cron schedule.
func NewSweeper(log *slog.Logger, store Store, schedule string) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		logger:   log.With(slog.String("component", "session_sweeper")),
	}
}

// Start schedules the sweep job.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := s.store.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Warn("session sweep failed", slog.Any("error", err))
		return
	}
	if purged > 0 {
		s.logger.Info("expired sessions purged", slog.Int64("count", purged))
	}
}
