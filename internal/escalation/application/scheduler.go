package application

import (
	"context"
	"log"
	"time"
)

// Sweeper runs one full-fleet escalation sweep.
type Sweeper interface {
	ProcessAllPending(ctx context.Context) ([]TicketResult, error)
}

// Scheduler runs the escalation sweep on a fixed interval.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(sweeper Sweeper, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Start begins the scheduler loop. It returns when ctx is cancelled; an
// in-flight sweep observes the same ctx and stops dispatching new tickets.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	results, err := s.sweeper.ProcessAllPending(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("escalation sweep error: %v", err)
		}
		return
	}
	fired := 0
	failed := 0
	for _, result := range results {
		fired += len(result.Fired)
		if result.Err != nil {
			failed++
		}
	}
	if s.logger != nil {
		s.logger.Printf("escalation sweep done: tickets=%d fired=%d failed=%d", len(results), fired, failed)
	}
}
