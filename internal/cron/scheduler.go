package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for an unregistered name.
var ErrUnknownJob = errors.New("cron: unknown job")

// ErrJobBusy is returned by RunNow while the job is already running.
var ErrJobBusy = errors.New("cron: job already running")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// JobInfo is a snapshot of one registered job.
type JobInfo struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	Next     time.Time     `json:"next,omitzero"`
	LastRun  time.Time     `json:"last_run,omitzero"`
	LastTook time.Duration `json:"last_took,omitzero"`
	LastErr  string        `json:"last_error,omitempty"`
}

type entry struct {
	job   Job
	lock  sync.Mutex
	id    cron.EntryID
	state JobInfo
}

// Scheduler runs jobs on their schedules. A job never overlaps itself: a
// tick that finds the previous run still going is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries []*entry
	byName  map[string]*entry
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	// onResult receives every completed run.
	onResult func(name string, elapsed time.Duration, err error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithResultHook registers fn, called after every job run.
func WithResultHook(fn func(name string, elapsed time.Duration, err error)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		byName:   make(map[string]*entry),
		logger:   logger.With("component", "cron"),
		ctx:      ctx,
		cancel:   cancel,
		onResult: func(string, time.Duration, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterJob adds a job. The schedule is validated immediately.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	if _, err := parser.Parse(j.Schedule()); err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}
	e := &entry{job: j, state: JobInfo{Name: name, Schedule: j.Schedule()}}
	s.byName[name] = e
	s.entries = append(s.entries, e)
	return nil
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cron.New(cron.WithParser(parser))
	for _, e := range s.entries {
		id, err := s.cron.AddFunc(e.job.Schedule(), func() {
			if err := s.run(e); errors.Is(err, ErrJobBusy) {
				s.logger.Warn("cron: job still running, skipping tick", "job", e.job.Name())
			}
		})
		if err != nil {
			return fmt.Errorf("cron: scheduling job %q: %w", e.job.Name(), err)
		}
		e.id = id
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.entries))
	return nil
}

// RunNow runs the named job immediately and returns its error.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(e)
}

func (s *Scheduler) run(e *entry) error {
	if !e.lock.TryLock() {
		return ErrJobBusy
	}
	defer e.lock.Unlock()

	name := e.job.Name()
	start := time.Now()
	err := e.job.Run(s.ctx)
	took := time.Since(start)

	s.mu.Lock()
	e.state.LastRun = start
	e.state.LastTook = took
	e.state.LastErr = ""
	if err != nil {
		e.state.LastErr = err.Error()
	}
	s.mu.Unlock()

	s.onResult(name, took, err)
	if err != nil {
		s.logger.Error("cron: job failed", "job", name, "error", err)
		return err
	}
	s.logger.Debug("cron: job completed", "job", name, "elapsed", took.Round(time.Millisecond))
	return nil
}

// Jobs returns a snapshot of every registered job, sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info := e.state
		if s.cron != nil && e.id != 0 {
			info.Next = s.cron.Entry(e.id).Next
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b JobInfo) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.cancel()

	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
