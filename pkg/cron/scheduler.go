// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// UndoExpirer prunes closed quick-entry undo windows.
type UndoExpirer interface {
	ExpireUndo() int
}

// Reindexer rebuilds the search index from storage.
type Reindexer interface {
	Reindex(ctx context.Context, since time.Time) (int, error)
}

// Jobs holds the cron specs; an empty spec disables its job.
type Jobs struct {
	UndoExpiry      string
	Reindex         string
	ReindexLookback time.Duration
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	jobs      Jobs
	undo      UndoExpirer
	reindexer Reindexer
	clock     func() time.Time
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler. Either collaborator may be nil.
func NewScheduler(jobs Jobs, undo UndoExpirer, reindexer Reindexer, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		undo:      undo,
		reindexer: reindexer,
		clock:     time.Now,
		logger:    logger,
	}
}

// Start registers the configured jobs and begins running them.
func (s *Scheduler) Start() error {
	if s.undo != nil && s.jobs.UndoExpiry != "" {
		if _, err := s.cron.AddFunc(s.jobs.UndoExpiry, s.expireUndo); err != nil {
			return err
		}
	}
	if s.reindexer != nil && s.jobs.Reindex != "" {
		if _, err := s.cron.AddFunc(s.jobs.Reindex, s.reindex); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers every job once.
func (s *Scheduler) RunNow() {
	go func() {
		if s.undo != nil {
			s.expireUndo()
		}
		if s.reindexer != nil {
			s.reindex()
		}
	}()
}

func (s *Scheduler) expireUndo() {
	if n := s.undo.ExpireUndo(); n > 0 {
		s.logger.Debug("expired quick-entry undo windows", slog.Int("expired", n))
	}
}

// reindex rebuilds the search index. A zero lookback reindexes everything.
func (s *Scheduler) reindex() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	var since time.Time
	if s.jobs.ReindexLookback > 0 {
		since = s.clock().Add(-s.jobs.ReindexLookback)
	}

	s.logger.Info("starting search reindex", slog.Time("since", since))
	start := s.clock()
	n, err := s.reindexer.Reindex(ctx, since)
	if err != nil {
		s.logger.Error("search reindex failed", slog.Any("error", err))
		return
	}
	s.logger.Info("search reindex completed",
		slog.Int("indexed", n),
		slog.Duration("duration", s.clock().Sub(start)),
	)
}
