// Package snapshot periodically writes the in-memory graph back to disk
// so mutations survive a restart even when per-write persistence is off.
package snapshot

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
)

// Scheduler runs the snapshot job on a cron schedule.
type Scheduler struct {
	store  *rdf.Store
	path   string
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler creates a scheduler writing snapshots of store to path.
func NewScheduler(store *rdf.Store, path string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:  store,
		path:   path,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the job under the given cron schedule and starts the
// scheduler. Standard five-field expressions and descriptors such as
// "@hourly" are accepted.
func (s *Scheduler) Start(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return fmt.Errorf("failed to schedule snapshot job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("snapshot scheduler started",
		zap.String("schedule", schedule),
		zap.String("path", s.path))
	return nil
}

// Stop stops the scheduler. Running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("snapshot scheduler stopped")
}

// Run writes one snapshot immediately.
func (s *Scheduler) Run() {
	if err := s.store.SaveFile(s.path); err != nil {
		s.logger.Error("snapshot failed", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.logger.Info("graph snapshot written",
		zap.String("path", s.path),
		zap.Int("triples", s.store.Len()))
}
