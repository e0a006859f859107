package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prudhvinik1/appsync/internal/logging"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BatchRunner is the orchestrator call the scheduler fires.
type BatchRunner interface {
	SyncAll(ctx context.Context, trigger models.SyncTrigger) (int, error)
}

// Scheduler runs the full sync on a cron schedule. At most one schedule is
// active per Scheduler.
type Scheduler struct {
	runner   BatchRunner
	location *time.Location
	logger   *zap.Logger

	mu      sync.Mutex
	current *SchedulerHandle
}

// SchedulerHandle controls one started schedule.
type SchedulerHandle struct {
	cron     *cron.Cron
	schedule cron.Schedule
	location *time.Location
	cancel   context.CancelFunc
	once     sync.Once
	stopped  context.Context
}

func NewScheduler(runner BatchRunner, location *time.Location, logger *zap.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	logger = logging.OrNop(logger)
	return &Scheduler{runner: runner, location: location, logger: logger}
}

// Start registers the job for spec, a standard five-field cron expression.
// A schedule previously started by this Scheduler is stopped first.
func (s *Scheduler) Start(spec string) (*SchedulerHandle, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.logger.Info("replacing active sync schedule")
		s.current.Stop()
		s.current = nil
	}

	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	c.Schedule(schedule, cron.FuncJob(func() {
		s.run(ctx, models.TriggerSchedule)
	}))
	c.Start()

	h := &SchedulerHandle{cron: c, schedule: schedule, location: s.location, cancel: cancel}
	s.current = h

	s.logger.Info("sync schedule started",
		zap.String("spec", spec),
		zap.String("timezone", s.location.String()),
		zap.Time("next", h.Next()))

	return h, nil
}

// Stop stops h if it is still the active schedule.
func (s *Scheduler) Stop(h *SchedulerHandle) context.Context {
	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()
	return h.Stop()
}

// RunNow runs the full sync once, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.run(ctx, models.TriggerManual)
}

func (s *Scheduler) run(ctx context.Context, trigger models.SyncTrigger) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled sync panicked", zap.Any("panic", r))
		}
	}()

	succeeded, err := s.runner.SyncAll(ctx, trigger)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.String("trigger", string(trigger)), zap.Error(err))
		return
	}
	s.logger.Info("scheduled sync completed", zap.String("trigger", string(trigger)), zap.Int("succeeded", succeeded))
}

// Stop prevents further firings and cancels a run in progress. The returned
// context is done once the running job has returned.
func (h *SchedulerHandle) Stop() context.Context {
	h.once.Do(func() {
		h.cancel()
		h.stopped = h.cron.Stop()
	})
	return h.stopped
}

// Next returns the next firing time in the scheduler's location.
func (h *SchedulerHandle) Next() time.Time {
	return h.schedule.Next(time.Now().In(h.location))
}

// cronLogger routes robfig/cron's logging through zap.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
