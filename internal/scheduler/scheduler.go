// Package scheduler runs batch jobs on cron schedules. Jobs never overlap:
// a job that fires while any job is still running is skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// Job is one scheduled batch.
type Job struct {
	Name     string
	Schedule string
	// Timeout bounds a single run. Zero means DefaultTimeout.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// DefaultTimeout bounds one scheduled run.
const DefaultTimeout = 30 * time.Minute

// Scheduler manages the cron entries.
type Scheduler struct {
	cron     *cron.Cron
	entryMap map[string]cron.EntryID
	mu       sync.RWMutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc

	// busy serialises jobs across entries.
	busy sync.Mutex
}

// specParser accepts a leading seconds field and the @hourly style
// descriptors, matching cron.WithSeconds.
var specParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether spec is a schedule Add would accept.
func Validate(spec string) error {
	_, err := specParser.Parse(normalizeSpec(spec))
	return err
}

// New creates a scheduler. Schedules accept five or six fields (seconds
// first) and the @hourly style descriptors.
func New() *Scheduler {
	log := cronLogger{logger.With("component", "scheduler")}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		entryMap: make(map[string]cron.EntryID),
	}
}

// Add schedules job. Jobs must have unique names.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entryMap[job.Name]; exists {
		return fmt.Errorf("job %q already scheduled", job.Name)
	}
	spec := normalizeSpec(job.Schedule)
	id, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", job.Schedule, err)
	}
	s.entryMap[job.Name] = id
	logger.Debug("job scheduled", "job", job.Name, "schedule", spec)
	return nil
}

// Trigger runs a scheduled job now, subject to the same serialisation.
func (s *Scheduler) Trigger(name string) error {
	s.mu.RLock()
	id, ok := s.entryMap[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

func (s *Scheduler) run(job Job) {
	if !s.busy.TryLock() {
		logger.Info("another job is running, skipping", "job", job.Name)
		return
	}
	defer s.busy.Unlock()

	s.mu.RLock()
	parent := s.ctx
	s.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}

	timeout := job.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	logger.Info("job started", "job", job.Name)
	if err := job.Run(ctx); err != nil {
		logger.Error("job failed", "job", job.Name, "error", err, "elapsed", time.Since(start))
		return
	}
	logger.Info("job finished", "job", job.Name, "elapsed", time.Since(start))
}

// Start begins firing jobs. Cancelling ctx cancels running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.running = true
	logger.Info("scheduler started", "jobs", len(s.entryMap))
}

// Stop stops firing jobs and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	logger.Info("scheduler stopped")
}

// NextRun returns when a job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.entryMap[name]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Jobs returns the scheduled job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entryMap))
	for name := range s.entryMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeSpec prefixes five-field expressions with a zero seconds field.
func normalizeSpec(spec string) string {
	spec = strings.TrimSpace(spec)
	if len(strings.Fields(spec)) == 5 {
		return "0 " + spec
	}
	return spec
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
