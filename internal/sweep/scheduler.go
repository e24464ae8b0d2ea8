package sweep

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires the sweeper on a cron expression. A pass still in flight
// when the next tick arrives is not overlapped; the tick is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	logger  *zap.Logger
	running atomic.Bool
}

// NewScheduler constructs a Scheduler for the given cron expression.
func NewScheduler(expr string, sweeper *Sweeper, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		return nil, fmt.Errorf("parse sweep cron %q: %w", expr, err)
	}
	return s, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sweep scheduler started")
}

// Stop halts the cron and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sweep scheduler stopped")
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	report, err := s.sweeper.Run(context.Background())
	if err != nil {
		s.logger.Error("scheduled sweep failed", zap.Error(err))
		return
	}
	failures := 0
	for _, pr := range report.Properties {
		if pr.Error != "" {
			failures++
		}
	}
	s.logger.Info("scheduled sweep complete",
		zap.Int("properties", len(report.Properties)),
		zap.Int("failures", failures),
	)
}
