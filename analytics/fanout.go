package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunReport is what one fan-out did.
type RunReport struct {
	RunId      string
	Job        Job
	Period     time.Time
	Franchises []string
	Succeeded  []string
	// Failed maps franchise id to the error that stopped its pipeline.
	Failed map[string]error
}

func (r *RunReport) Status() string {
	switch {
	case len(r.Failed) == 0:
		return models.RunStatusSuccess
	case len(r.Succeeded) == 0:
		return models.RunStatusFailed
	default:
		return models.RunStatusPartial
	}
}

// RunAll runs job for every franchise known at the start of the run. Franchises added during
// the run wait for the next one. One franchise failing never stops the others; the error is
// only returned when the franchise list itself cannot be read.
func (s *Service) RunAll(ctx context.Context, job Job, now time.Time, trigger string) (*RunReport, error) {
	logger := s.logger
	report := &RunReport{
		RunId:  uuid.NewString(),
		Job:    job,
		Period: now.UTC(),
		Failed: make(map[string]error),
	}
	ctx = utils.SetRunIdInContext(ctx, report.RunId)

	started := time.Now()
	run := &models.AnalyticsRun{
		RunId:       report.RunId,
		Job:         string(job),
		TriggeredBy: trigger,
		Status:      models.RunStatusRunning,
		StartedAt:   &started,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		config.LogError(logger, "analytics", "RunAll", "create run record", report.RunId, err)
	}

	ids, err := s.store.ListFranchiseIds(ctx)
	if err != nil {
		s.finishRun(ctx, run, report, started, err)
		return report, fmt.Errorf("list franchises: %w", err)
	}
	report.Franchises = ids

	var mu sync.Mutex
	record := func(id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed[id] = err
			return
		}
		report.Succeeded = append(report.Succeeded, id)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := s.runIsolated(gctx, job, id, now, true)
			if err != nil {
				config.LogError(logger, "analytics", "RunAll", "franchise "+string(job)+" failed", id, err)
			}
			record(id, err)
			// never cancel the other franchises
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(report.Succeeded)

	s.finishRun(ctx, run, report, started, nil)
	logger.WithFields(logrus.Fields{
		"run_id":     report.RunId,
		"job":        job,
		"franchises": len(ids),
		"failed":     len(report.Failed),
		"status":     report.Status(),
	}).Info("analytics fan-out finished")
	return report, nil
}

// RunFranchise runs job for one franchise on demand. It fails fast with ErrRunInProgress when
// another run holds the franchise.
func (s *Service) RunFranchise(ctx context.Context, job Job, franchiseID string, now time.Time) error {
	if franchiseID == "" {
		return ErrFranchiseRequired
	}
	report := &RunReport{
		RunId:      uuid.NewString(),
		Job:        job,
		Period:     now.UTC(),
		Franchises: []string{franchiseID},
		Failed:     make(map[string]error),
	}
	ctx = utils.SetRunIdInContext(ctx, report.RunId)

	started := time.Now()
	run := &models.AnalyticsRun{
		RunId:             report.RunId,
		Job:               string(job),
		TriggeredBy:       models.RunTriggerOnDemand,
		TargetFranchiseId: franchiseID,
		Status:            models.RunStatusRunning,
		StartedAt:         &started,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		config.LogError(s.logger, "analytics", "RunFranchise", "create run record", report.RunId, err)
	}

	err := s.runIsolated(ctx, job, franchiseID, now, false)
	if err != nil {
		report.Failed[franchiseID] = err
	} else {
		report.Succeeded = []string{franchiseID}
	}
	s.finishRun(ctx, run, report, started, nil)
	return err
}

// runIsolated turns a panic inside one franchise pipeline into that franchise's error.
func (s *Service) runIsolated(ctx context.Context, job Job, franchiseID string, now time.Time, wait bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s for franchise %s: %v", job, franchiseID, r)
		}
	}()
	return s.runJob(ctx, job, franchiseID, now, wait)
}

func (s *Service) finishRun(ctx context.Context, run *models.AnalyticsRun, report *RunReport, started time.Time, listErr error) {
	finished := time.Now()
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(started).Milliseconds()
	run.FranchiseCount = len(report.Franchises)
	run.FailedCount = len(report.Failed)
	run.Status = report.Status()

	errs := make(map[string]string, len(report.Failed))
	for id, err := range report.Failed {
		errs[id] = err.Error()
	}
	if listErr != nil {
		run.Status = models.RunStatusFailed
		errs["*"] = listErr.Error()
	}
	if b, err := json.Marshal(errs); err == nil {
		run.ErrorsJSON = b
	}
	if err := s.store.FinishRun(ctx, run); err != nil {
		config.LogError(s.logger, "analytics", "finishRun", "finish run record", run.RunId, err)
	}
}
