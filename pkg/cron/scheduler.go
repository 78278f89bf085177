// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/contaflux/contaflux/pkg/storage"
)

// Scheduler sweeps the output and upload directories on a cron schedule
// so stale exports and uploads do not pile up between runs.
type Scheduler struct {
	cron      *cron.Cron
	workspace *storage.Workspace
	schedule  string
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(workspace *storage.Workspace, schedule string, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, no seconds
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		workspace: workspace,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepWorkspace)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the workspace sweep.
func (s *Scheduler) RunNow() {
	go s.sweepWorkspace()
}

func (s *Scheduler) sweepWorkspace() {
	s.logger.Info("starting workspace sweep")
	if err := s.workspace.Clear(); err != nil {
		s.logger.Error("workspace sweep failed", slog.Any("error", err))
		return
	}
	s.logger.Info("workspace sweep completed")
}
