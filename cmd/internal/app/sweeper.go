package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"walink/cmd/internal/linking"
)

// sweeper periodically closes sessions whose deadline passed without their
// timer firing.
type sweeper struct {
	log       Logger
	manager   *linking.Manager
	scheduler *gocron.Scheduler
}

func newSweeper(log Logger, m *linking.Manager, interval time.Duration) (*sweeper, error) {
	s := &sweeper{
		log:       log,
		manager:   m,
		scheduler: gocron.NewScheduler(time.UTC),
	}
	s.scheduler.SingletonModeAll()

	if _, err := s.scheduler.Every(interval).WaitForSchedule().Do(s.run); err != nil {
		return nil, fmt.Errorf("sweeper: schedule: %w", err)
	}
	return s, nil
}

func (s *sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n := s.manager.Sweep(ctx); n > 0 {
		s.log.Warn("sweep.closed", "sessions", n, "live", s.manager.Registry().Len())
	}
}

func (s *sweeper) start() { s.scheduler.StartAsync() }

func (s *sweeper) stop() { s.scheduler.Stop() }
