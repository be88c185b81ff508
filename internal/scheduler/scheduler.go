// Package scheduler triggers runs periodically.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"hostpin/internal/logging"
)

// DefaultWatchInterval is how often the stored interval is re-read.
const DefaultWatchInterval = 30 * time.Second

// Options configures a Scheduler.
type Options struct {
	// Interval returns the current run interval. Values <= 0 disable
	// automatic runs.
	Interval func(ctx context.Context) (time.Duration, error)
	// WatchInterval is how often Interval is polled for changes.
	WatchInterval time.Duration
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

// Scheduler runs a task every interval, following interval changes made
// in the settings store while it is running.
type Scheduler struct {
	scheduler gocron.Scheduler
	task      func(ctx context.Context)
	opts      Options
	log       *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	job      gocron.Job
	interval time.Duration
	running  bool
}

// New creates a new Scheduler for task.
func New(task func(ctx context.Context), opts Options) (*Scheduler, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = DefaultWatchInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scheduler")

	scheduler, err := gocron.NewScheduler(
		gocron.WithClock(opts.Clock),
		gocron.WithLogger(logging.NewCronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: scheduler,
		task:      task,
		opts:      opts,
		log:       log,
	}, nil
}

// Start starts the scheduler with the interval currently configured.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.ctx = ctx
	s.mu.Unlock()

	if s.opts.Interval != nil {
		interval, err := s.opts.Interval(ctx)
		if err != nil {
			return fmt.Errorf("failed to read interval: %w", err)
		}
		if err := s.Reschedule(interval); err != nil {
			return err
		}

		_, err = s.scheduler.NewJob(
			gocron.DurationJob(s.opts.WatchInterval),
			gocron.NewTask(s.watch),
			gocron.WithName("watch-interval"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create watch job: %w", err)
		}
	}

	s.scheduler.Start()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	// Jobs take mu when they fire, so it must not be held here.
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the active run interval; 0 means disabled.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NextRun returns when the task runs next. ok is false when automatic
// runs are disabled.
func (s *Scheduler) NextRun() (next time.Time, ok bool) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return time.Time{}, false
	}
	next, err := job.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Reschedule replaces the run job. interval <= 0 disables automatic runs.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if interval < 0 {
		interval = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && interval == s.interval {
		return nil
	}
	if s.job != nil {
		if err := s.scheduler.RemoveJob(s.job.ID()); err != nil {
			return fmt.Errorf("failed to remove run job: %w", err)
		}
		s.job = nil
	}
	s.interval = interval

	if interval == 0 {
		s.log.Info("automatic runs disabled")
		return nil
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runTask),
		gocron.WithName("auto-update"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create run job: %w", err)
	}
	s.job = job
	s.log.Info("automatic runs scheduled", zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) runTask() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.log.Debug("automatic run triggered")
	s.task(ctx)
}

// watch picks up interval changes made through the settings store.
func (s *Scheduler) watch() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	interval, err := s.opts.Interval(ctx)
	if err != nil {
		s.log.Warn("failed to read interval", zap.Error(err))
		return
	}
	if err := s.Reschedule(interval); err != nil {
		s.log.Error("failed to reschedule", zap.Error(err))
	}
}
