package cron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/majlis/internal/cron"
	"github.com/flemzord/majlis/internal/cron/crontest"
)

func TestScheduler_RegisterJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"five fields", "*/5 * * * *", false},
		{"descriptor", "@hourly", false},
		{"every", "@every 30s", false},
		{"garbage", "not a schedule", true},
		{"six fields", "0 */5 * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := cron.NewScheduler(nil)
			err := s.RegisterJob(&crontest.MockJob{NameVal: "job", ScheduleVal: tt.schedule})
			if (err != nil) != tt.wantErr {
				t.Fatalf("RegisterJob(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_DuplicateName(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "dup", ScheduleVal: "@hourly"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "dup", ScheduleVal: "@daily"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		results []string
	)
	boom := errors.New("boom")
	s := cron.NewScheduler(nil, cron.WithResultHook(func(name string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			results = append(results, name+":err")
			return
		}
		results = append(results, name+":ok")
	}))

	ok := &crontest.MockJob{NameVal: "ok", ScheduleVal: "@hourly"}
	bad := &crontest.MockJob{NameVal: "bad", ScheduleVal: "@hourly", RunFunc: func(context.Context) error { return boom }}
	for _, j := range []cron.Job{ok, bad} {
		if err := s.RegisterJob(j); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.RunNow("ok"); err != nil {
		t.Fatalf("RunNow(ok) = %v", err)
	}
	if err := s.RunNow("bad"); !errors.Is(err, boom) {
		t.Fatalf("RunNow(bad) = %v, want boom", err)
	}
	if err := s.RunNow("missing"); !errors.Is(err, cron.ErrUnknownJob) {
		t.Fatalf("RunNow(missing) = %v, want ErrUnknownJob", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 || results[0] != "ok:ok" || results[1] != "bad:err" {
		t.Fatalf("results = %v", results)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "bad" || jobs[1].Name != "ok" {
		t.Fatalf("Jobs() = %+v", jobs)
	}
	if jobs[0].LastErr != "boom" || jobs[0].LastRun.IsZero() {
		t.Errorf("bad job state = %+v", jobs[0])
	}
	if jobs[1].LastErr != "" {
		t.Errorf("ok job LastErr = %q", jobs[1].LastErr)
	}
}

func TestScheduler_NoOverlap(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	job := &crontest.MockJob{NameVal: "slow", ScheduleVal: "@hourly", RunFunc: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}

	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RunNow("slow") }()
	<-started

	if err := s.RunNow("slow"); !errors.Is(err, cron.ErrJobBusy) {
		t.Fatalf("concurrent RunNow = %v, want ErrJobBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first RunNow = %v", err)
	}
	if got := job.CallCount(); got != 1 {
		t.Errorf("CallCount = %d, want 1", got)
	}
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	job := &crontest.MockJob{NameVal: "blocking", ScheduleVal: "@every 1s", RunFunc: func(ctx context.Context) error {
		select {
		case <-started:
		default:
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}}

	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if jobs := s.Jobs(); jobs[0].LastErr == "" {
		t.Error("expected cancelled job to record an error")
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
