// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/majlis/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and counts calls.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of Run calls.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockMaintainer counts Maintain calls.
type MockMaintainer struct {
	Err   error
	Calls atomic.Int32
}

// Maintain implements cron.Maintainer.
func (m *MockMaintainer) Maintain(context.Context) error {
	m.Calls.Add(1)
	return m.Err
}

// MockReaper records the max age it was called with.
type MockReaper struct {
	Reaped int
	Calls  atomic.Int32

	mu     sync.Mutex
	maxAge time.Duration
}

// Reap implements cron.Reaper.
func (m *MockReaper) Reap(maxAge time.Duration) int {
	m.Calls.Add(1)
	m.mu.Lock()
	m.maxAge = maxAge
	m.mu.Unlock()
	return m.Reaped
}

// MaxAge returns the last max age passed to Reap.
func (m *MockReaper) MaxAge() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxAge
}
