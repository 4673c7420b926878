package calsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule syncs every 30 minutes.
const DefaultSchedule = "*/30 * * * *"

// Scheduler runs SyncAll on a cron schedule. A run still in progress when the
// next one is due causes that next run to be skipped.
type Scheduler struct {
	syncer  *Syncer
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// NewScheduler validates spec and registers the sync job. Each run is bounded by timeout.
func NewScheduler(syncer *Syncer, spec string, loc *time.Location, timeout time.Duration) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	logger := syncer.logger
	cl := cronLogger{logger}
	s := &Scheduler{
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("calendar sync scheduled")
}

// Stop halts the schedule and waits for a running sync to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next reports when the sync will next run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.syncer.SyncAll(ctx); err != nil {
		s.logger.Warn("scheduled calendar sync incomplete", "error", err)
	}
}

// cronLogger adapts slog to the cron logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
