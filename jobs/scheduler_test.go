package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/franchise_analytics/analytics"
	"github.com/mmdatafocus/franchise_analytics/config"
)

func TestNextWeekly(t *testing.T) {
	cases := []struct {
		after    time.Time
		expected time.Time
	}{
		// Wednesday
		{time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), time.Date(2025, 3, 9, 3, 0, 0, 0, time.UTC)},
		// Sunday before 03:00
		{time.Date(2025, 3, 9, 2, 59, 0, 0, time.UTC), time.Date(2025, 3, 9, 3, 0, 0, 0, time.UTC)},
		// exactly on the tick moves to next week
		{time.Date(2025, 3, 9, 3, 0, 0, 0, time.UTC), time.Date(2025, 3, 16, 3, 0, 0, 0, time.UTC)},
		// Saturday across a month boundary
		{time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := NextWeekly(tc.after); !got.Equal(tc.expected) {
			t.Fatalf("NextWeekly(%s) expected %s, got %s", tc.after, tc.expected, got)
		}
	}
}

func TestNextMonthly(t *testing.T) {
	cases := []struct {
		after    time.Time
		expected time.Time
	}{
		{time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 4, 0, 0, 0, time.UTC)},
		{time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 4, 0, 0, 0, time.UTC)},
		{time.Date(2025, 4, 1, 4, 0, 0, 0, time.UTC), time.Date(2025, 5, 1, 4, 0, 0, 0, time.UTC)},
		{time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 4, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := NextMonthly(tc.after); !got.Equal(tc.expected) {
			t.Fatalf("NextMonthly(%s) expected %s, got %s", tc.after, tc.expected, got)
		}
	}
}

type call struct {
	job       analytics.Job
	franchise string
	now       time.Time
	trigger   string
}

type fakeRunner struct {
	mu        sync.Mutex
	calls     []call
	failJob   analytics.Job
	panicJob  analytics.Job
	franchErr error
}

func (f *fakeRunner) RunAll(ctx context.Context, job analytics.Job, now time.Time, trigger string) (*analytics.RunReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{job: job, now: now, trigger: trigger})
	f.mu.Unlock()
	if job == f.panicJob {
		panic("boom")
	}
	if job == f.failJob {
		return nil, errors.New("list franchises failed")
	}
	return &analytics.RunReport{RunId: "run-1", Job: job, Failed: map[string]error{}}, nil
}

func (f *fakeRunner) RunFranchise(ctx context.Context, job analytics.Job, franchiseID string, now time.Time) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{job: job, franchise: franchiseID, now: now, trigger: "on_demand"})
	f.mu.Unlock()
	return f.franchErr
}

func TestScheduler_FireMonthlyClosesPreviousMonthThenForecasts(t *testing.T) {
	runner := &fakeRunner{}
	schedules := DefaultSchedules(config.AnalyticsConfig{EnableMonthlySchedule: true})
	if len(schedules) != 1 {
		t.Fatalf("expected only the monthly schedule, got %d", len(schedules))
	}

	at := time.Date(2025, 4, 1, 4, 0, 0, 0, time.UTC)
	NewScheduler(runner, nil, nil, schedules).Fire(context.Background(), schedules[0], at)

	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runner.calls))
	}
	rollup, forecast := runner.calls[0], runner.calls[1]
	if rollup.job != analytics.JobMonthlyRollup || analytics.CurrentMonthWindow(rollup.now).Period != "2025-03" {
		t.Fatalf("expected March rollup, got %s at %s", rollup.job, rollup.now)
	}
	if forecast.job != analytics.JobCashFlowForecast || !forecast.now.Equal(at) || forecast.trigger != "schedule" {
		t.Fatalf("unexpected forecast call %+v", forecast)
	}
}

func TestScheduler_FailingStepDoesNotStopTheNext(t *testing.T) {
	runner := &fakeRunner{panicJob: analytics.JobMonthlyRollup}
	sched := DefaultSchedules(config.AnalyticsConfig{EnableMonthlySchedule: true})[0]
	NewScheduler(runner, nil, nil, nil).Fire(context.Background(), sched, time.Date(2025, 4, 1, 4, 0, 0, 0, time.UTC))

	if len(runner.calls) != 2 || runner.calls[1].job != analytics.JobCashFlowForecast {
		t.Fatalf("expected forecast to run after a panicking rollup, got %+v", runner.calls)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s := NewScheduler(&fakeRunner{}, nil, nil, DefaultSchedules(config.AnalyticsConfig{EnableWeeklySchedule: true, EnableMonthlySchedule: true}))
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
