package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron"
	"k8s.io/klog"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
)

// Job is one invocation of the scheduled work.
type Job func(ctx context.Context) error

// Scheduler fires a Job on a cron schedule. Every attempt has its own timeout
// and failures are retried after a delay. A firing is skipped while the
// previous one is still running.
type Scheduler struct {
	cron       *cron.Cron
	job        Job
	timeout    time.Duration
	retries    int
	retryDelay time.Duration

	running sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// New parses a standard 5-field cron expression such as "*/5 * * * *".
func New(expr string, timeout time.Duration, retries int, retryDelay time.Duration, job Job) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	if retries < 0 {
		return nil, fmt.Errorf("retries %d cannot be negative", retries)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(),
		job:        job,
		timeout:    timeout,
		retries:    retries,
		retryDelay: retryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.fire))

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and cancels any running attempt or pending retry.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.cancel()
}

func (s *Scheduler) fire() {
	if !s.running.TryLock() {
		slog.Warn("previous run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	klog.Infof("%s\n", time.Now().Format(time.RFC850))
	if err := s.RunOnce(s.ctx); err != nil {
		slog.Error("scheduled run failed", "kind", apierr.Name(err), "error", err)
	}
}

// RunOnce runs the job with up to retries extra attempts.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var err error

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("run failed, retrying", "attempt", attempt, "delay", s.retryDelay, "error", err)

			timer := time.NewTimer(s.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled: %w", err)
			case <-timer.C:
			}
		}

		err = s.attempt(ctx)
		if err == nil {
			return nil
		}
	}

	return err
}

func (s *Scheduler) attempt(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.job(ctx)
}
