package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/franchise_analytics/analytics"
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/sirupsen/logrus"
)

// Runner is the fan-out side of analytics.Service.
type Runner interface {
	RunAll(ctx context.Context, job analytics.Job, now time.Time, trigger string) (*analytics.RunReport, error)
}

// Step is one job fired by a schedule. AsOf maps the fire time to the "now" the job runs with;
// nil means the fire time itself.
type Step struct {
	Job  analytics.Job
	AsOf func(at time.Time) time.Time
}

// Schedule fires its steps in order at every instant returned by Next.
type Schedule struct {
	Name  string
	Next  func(after time.Time) time.Time
	Steps []Step
}

// NextWeekly returns the first Sunday 03:00 UTC strictly after after.
func NextWeekly(after time.Time) time.Time {
	after = after.UTC()
	daysUntil := (int(time.Sunday) - int(after.Weekday()) + 7) % 7
	next := time.Date(after.Year(), after.Month(), after.Day()+daysUntil, 3, 0, 0, 0, time.UTC)
	if !next.After(after) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// NextMonthly returns the first 1st-of-month 04:00 UTC strictly after after.
func NextMonthly(after time.Time) time.Time {
	after = after.UTC()
	next := time.Date(after.Year(), after.Month(), 1, 4, 0, 0, 0, time.UTC)
	if !next.After(after) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

// EndOfPreviousMonth is the last second of the month before at's.
func EndOfPreviousMonth(at time.Time) time.Time {
	at = at.UTC()
	return time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)
}

// DefaultSchedules is the weekly revenue rollup on Sundays plus, on the first of each month,
// the rollup closing the previous month followed by the next month's forecast.
func DefaultSchedules(cfg config.AnalyticsConfig) []Schedule {
	var schedules []Schedule
	if cfg.EnableWeeklySchedule {
		schedules = append(schedules, Schedule{
			Name:  "weekly",
			Next:  NextWeekly,
			Steps: []Step{{Job: analytics.JobWeeklyRollup}},
		})
	}
	if cfg.EnableMonthlySchedule {
		schedules = append(schedules, Schedule{
			Name: "monthly",
			Next: NextMonthly,
			Steps: []Step{
				{Job: analytics.JobMonthlyRollup, AsOf: EndOfPreviousMonth},
				{Job: analytics.JobCashFlowForecast},
			},
		})
	}
	return schedules
}

// Scheduler fires schedules until its context is cancelled.
type Scheduler struct {
	Runner    Runner
	Clock     analytics.Clock
	Logger    *logrus.Logger
	Schedules []Schedule
}

func NewScheduler(runner Runner, clock analytics.Clock, logger *logrus.Logger, schedules []Schedule) *Scheduler {
	if clock == nil {
		clock = analytics.SystemClock{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Scheduler{Runner: runner, Clock: clock, Logger: logger, Schedules: schedules}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil || s.Runner == nil {
		return
	}
	var wg sync.WaitGroup
	for _, sched := range s.Schedules {
		wg.Add(1)
		go func(sched Schedule) {
			defer wg.Done()
			s.loop(ctx, sched)
		}(sched)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sched Schedule) {
	for {
		next := sched.Next(s.Clock.Now())
		s.Logger.WithFields(logrus.Fields{
			"schedule": sched.Name,
			"next_run": next.Format(time.RFC3339),
		}).Info("analytics schedule armed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		s.Fire(ctx, sched, next)
	}
}

// Fire runs every step of sched for the fire time at. A failing or panicking step is logged and
// the remaining steps still run.
func (s *Scheduler) Fire(ctx context.Context, sched Schedule, at time.Time) {
	for _, step := range sched.Steps {
		now := at
		if step.AsOf != nil {
			now = step.AsOf(at)
		}
		if err := s.runStep(ctx, step.Job, now); err != nil {
			config.LogError(s.Logger, "jobs", "Fire", "scheduled "+string(step.Job), sched.Name, err)
		}
	}
}

func (s *Scheduler) runStep(ctx context.Context, job analytics.Job, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	report, err := s.Runner.RunAll(ctx, job, now, models.RunTriggerSchedule)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		s.Logger.WithFields(logrus.Fields{
			"job":    job,
			"run_id": report.RunId,
			"failed": len(report.Failed),
		}).Warn("scheduled run finished with failed franchises")
	}
	return nil
}
