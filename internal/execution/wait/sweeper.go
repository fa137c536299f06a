package wait

import (
	"context"
	"fmt"

	"n8n-gportal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically resumes waits whose deadline has passed
type Sweeper struct {
	registry *Registry
	cron     *cron.Cron
	logger   logger.Logger
}

// NewSweeper schedules registry.ResumeExpired on a standard cron schedule
// such as "@every 1m"
func NewSweeper(registry *Registry, schedule string, log logger.Logger) (*Sweeper, error) {
	s := &Sweeper{
		registry: registry,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		logger: log,
	}

	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep resumes expired waits once
func (s *Sweeper) Sweep() {
	ctx := context.Background()
	n, err := s.registry.ResumeExpired(ctx)
	if err != nil {
		s.logger.Error("Wait sweep failed", "error", err, "resumed", n)
		return
	}
	if n > 0 {
		s.logger.Info("Resumed expired waits", "count", n)
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Wait sweeper started", "entries", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
