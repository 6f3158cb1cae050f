package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/insightdelivered/spendsense/internal/logger"
)

// Sweeper periodically evicts idle sessions from a Store.
type Sweeper struct {
	cron  *cron.Cron
	store Store
	log   logger.Logger
}

// NewSweeper schedules store.Sweep every interval.
func NewSweeper(store Store, interval time.Duration, log logger.Logger) (*Sweeper, error) {
	s := &Sweeper{cron: cron.New(), store: store, log: log}
	if _, err := s.cron.AddFunc("@every "+interval.String(), s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("session", "sweeper started", map[string]interface{}{"jobs": len(s.cron.Entries())})
}

// Stop halts the schedule; the returned context is done once a running
// sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce sweeps immediately.
func (s *Sweeper) RunOnce() {
	if n := s.store.Sweep(); n > 0 {
		s.log.Info("session", "evicted idle sessions", map[string]interface{}{"count": n})
	}
}
