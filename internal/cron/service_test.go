package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held     map[string]bool
	job      string
	failWith error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	if f.held[f.job] {
		return false, nil
	}
	f.held[f.job] = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	delete(f.held, f.job)
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func memLocks(held map[string]bool) LockFactory {
	return func(job string) (Lock, error) {
		return &fakeLock{held: held, job: job}, nil
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestRunDueRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "ok"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	svc, err := NewService(ServiceParams{
		Logger:  testLogger(),
		Entries: []Entry{{Job: bad, Every: time.Hour}, {Job: ok, Every: time.Hour}},
		Locks:   memLocks(map[string]bool{}),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	svc.runDue(context.Background())

	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected both jobs to run once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
	if got := jobCounter(t, reg, "ok", metrics.CronSucceeded); got != 1 {
		t.Fatalf("expected one success for ok, got %v", got)
	}
	if got := jobCounter(t, reg, "bad", metrics.CronFailed); got != 1 {
		t.Fatalf("expected one failure for bad, got %v", got)
	}
}

func TestRunDueHonoursCadence(t *testing.T) {
	hourly := &testJob{name: "hourly"}
	daily := &testJob{name: "daily"}
	c := &clock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Logger:  testLogger(),
		Entries: []Entry{{Job: hourly, Every: time.Hour}, {Job: daily, Every: 24 * time.Hour}},
		Locks:   memLocks(map[string]bool{}),
		Now:     c.now,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()

	svc.runDue(ctx)
	c.t = c.t.Add(30 * time.Minute)
	svc.runDue(ctx)
	if hourly.runs != 1 || daily.runs != 1 {
		t.Fatalf("after 30m expected 1/1 runs, got %d/%d", hourly.runs, daily.runs)
	}

	c.t = c.t.Add(30 * time.Minute)
	svc.runDue(ctx)
	if hourly.runs != 2 || daily.runs != 1 {
		t.Fatalf("after 1h expected 2/1 runs, got %d/%d", hourly.runs, daily.runs)
	}

	c.t = c.t.Add(23 * time.Hour)
	svc.runDue(ctx)
	if hourly.runs != 3 || daily.runs != 2 {
		t.Fatalf("after 24h expected 3/2 runs, got %d/%d", hourly.runs, daily.runs)
	}
}

func TestRunDueSkipsJobHeldElsewhere(t *testing.T) {
	held := map[string]bool{"busy": true}
	busy := &testJob{name: "busy"}
	free := &testJob{name: "free"}
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:  testLogger(),
		Entries: []Entry{{Job: busy, Every: time.Minute}, {Job: free, Every: time.Minute}},
		Locks:   memLocks(held),
		Metrics: metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	svc.runDue(context.Background())

	if busy.runs != 0 {
		t.Fatalf("locked job should not run, ran %d", busy.runs)
	}
	if free.runs != 1 {
		t.Fatalf("free job should run once, ran %d", free.runs)
	}
	if held["free"] {
		t.Fatal("lock for free job should be released after the run")
	}
	if got := jobCounter(t, reg, "busy", metrics.CronSkipped); got != 1 {
		t.Fatalf("expected one skipped run, got %v", got)
	}
}

func TestRunDueLockErrorCountsFailure(t *testing.T) {
	job := &testJob{name: "job"}
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	svc, err := NewService(ServiceParams{
		Logger:  testLogger(),
		Entries: []Entry{{Job: job, Every: time.Minute}},
		Locks: func(name string) (Lock, error) {
			return &fakeLock{held: map[string]bool{}, job: name, failWith: errors.New("redis down")}, nil
		},
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	svc.runDue(context.Background())

	if job.runs != 0 {
		t.Fatalf("job should not run without lock, ran %d", job.runs)
	}
	if got := jobCounter(t, reg, "job", metrics.CronFailed); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	svc, err := NewService(ServiceParams{
		Logger:  testLogger(),
		Entries: []Entry{{Job: job, Every: time.Hour}},
		Locks:   memLocks(map[string]bool{}),
		Tick:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	if _, err := NewService(ServiceParams{Locks: memLocks(nil)}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected lock factory error")
	}
}

func TestScheduleIgnoresInvalidEntries(t *testing.T) {
	s := newSchedule([]Entry{{Job: nil, Every: time.Minute}, {Job: &testJob{name: "x"}, Every: 0}})
	if got := s.due(time.Now()); len(got) != 0 {
		t.Fatalf("expected no due entries, got %d", len(got))
	}
}

func jobCounter(t *testing.T, reg *prometheus.Registry, job, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "storefront_cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, label := range m.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			if labels["job"] == job && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
