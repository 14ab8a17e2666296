// Package jobs runs the periodic background work of the service on cron
// schedules: budget alerts, the recurring due-scan and monthly reports.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	applog "welth/internal/log"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is one named unit of scheduled work.
type Job struct {
	Name     string
	Schedule string // standard 5-field cron
	// Timeout bounds a single run; zero means no bound.
	Timeout time.Duration
	Run     func(ctx context.Context, now time.Time) error
}

// Scheduler owns a cron runner and the jobs registered on it. A run that is
// still going when its next tick fires is skipped, never doubled.
type Scheduler struct {
	jobs map[string]Job
	now  func() time.Time

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	cancel  context.CancelFunc
}

func NewScheduler(jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{jobs: make(map[string]Job, len(jobs)), now: time.Now}
	for _, j := range jobs {
		if j.Name == "" || j.Run == nil {
			return nil, fmt.Errorf("job %q: name and run func are required", j.Name)
		}
		if _, dup := s.jobs[j.Name]; dup {
			return nil, fmt.Errorf("job %q registered twice", j.Name)
		}
		if _, err := cron.ParseStandard(j.Schedule); err != nil {
			return nil, fmt.Errorf("job %q: invalid schedule %q: %w", j.Name, j.Schedule, err)
		}
		s.jobs[j.Name] = j
	}
	return s, nil
}

// Names lists registered jobs in name order.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every job. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	for _, name := range s.Names() {
		job := s.jobs[name]
		if _, err := c.AddFunc(job.Schedule, func() { s.execute(runCtx, job) }); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	c.Start()
	s.cron, s.cancel, s.running = c, cancel, true

	slog.InfoContext(ctx, "Job scheduler started",
		applog.FieldComponent, applog.ComponentJobs,
		"jobs", s.Names())
	return nil
}

// Stop cancels in-flight runs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Job scheduler stopped gracefully", applog.FieldComponent, applog.ComponentJobs)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Job scheduler stop timed out", applog.FieldComponent, applog.ComponentJobs)
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow runs the named job once in the caller's goroutine, for external
// schedulers and manual triggers.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	start := s.now()
	slog.InfoContext(ctx, "Job started", applog.FieldComponent, applog.ComponentJobs, applog.FieldJob, job.Name)

	err := job.Run(ctx, start)
	duration := time.Since(start)
	if err != nil {
		slog.ErrorContext(ctx, "Job failed",
			applog.FieldComponent, applog.ComponentJobs,
			applog.FieldJob, job.Name,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldError, err)
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	slog.InfoContext(ctx, "Job completed",
		applog.FieldComponent, applog.ComponentJobs,
		applog.FieldJob, job.Name,
		applog.FieldDuration, duration.Milliseconds())
	return nil
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, append([]any{applog.FieldComponent, applog.ComponentJobs}, keysAndValues...)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{applog.FieldComponent, applog.ComponentJobs, applog.FieldError, err}, keysAndValues...)...)
}
