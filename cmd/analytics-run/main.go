package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/franchise_analytics/analytics"
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/jobs"
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/mmdatafocus/franchise_analytics/reports"
)

func main() {
	jobName := flag.String("job", "", "Job to run: weekly_rollup | monthly_rollup | cash_flow_forecast")
	franchiseID := flag.String("franchise-id", "", "Optional: run only one franchise. If empty, runs every franchise.")
	nowFlag := flag.String("now", "", "Optional: instant to run as (RFC3339 or YYYY-MM-DD). Defaults to the current time.")
	publish := flag.Bool("publish", false, "Publish the request to the analytics topic instead of running it here.")
	export := flag.Bool("export", false, "After the run, export the franchise's summaries and forecasts as xlsx (requires -franchise-id).")
	out := flag.String("out", "", "Optional: write the export to this file instead of uploading it to ANALYTICS_EXPORT_BUCKET.")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadAnalyticsConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var clock analytics.Clock = analytics.SystemClock{}
	if strings.TrimSpace(*nowFlag) != "" {
		t, ok := analytics.ParseInstant(strings.TrimSpace(*nowFlag))
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid -now %q\n", *nowFlag)
			os.Exit(2)
		}
		clock = analytics.FixedClock(t)
	}
	now := clock.Now()

	req := jobs.RunRequest{Job: strings.TrimSpace(*jobName), FranchiseId: strings.TrimSpace(*franchiseID)}
	if strings.TrimSpace(*nowFlag) != "" {
		req.Now = &now
	}
	if req.Job != "" {
		if err := req.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
			os.Exit(2)
		}
	} else if !*export {
		fmt.Fprintln(os.Stderr, "-job or -export is required")
		os.Exit(2)
	}

	if *publish {
		msgID, err := jobs.PublishRunRequest(ctx, cfg.Topic, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("published %s to %s (message_id=%s)\n", req.Job, cfg.Topic, msgID)
		return
	}

	// Explicit connects: config does not connect in init().
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		config.ConnectRedisWithRetry()
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}

	store := models.NewAnalyticsStore(db)
	svc := analytics.NewServiceFromConfig(store, cfg, clock)

	if req.Job != "" {
		job, _ := analytics.ParseJob(req.Job)
		if req.FranchiseId != "" {
			fmt.Printf("Running %s franchise=%s now=%s\n", job, req.FranchiseId, now.Format(time.RFC3339))
			if err := svc.RunFranchise(ctx, job, req.FranchiseId, now); err != nil {
				fmt.Fprintf(os.Stderr, "franchise %s %s failed: %v\n", req.FranchiseId, job, err)
				os.Exit(1)
			}
		} else {
			fmt.Printf("Running %s for all franchises now=%s\n", job, now.Format(time.RFC3339))
			report, err := svc.RunAll(ctx, job, now, models.RunTriggerCLI)
			if err != nil {
				fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
				os.Exit(1)
			}
			for id, ferr := range report.Failed {
				fmt.Fprintf(os.Stderr, "franchise %s failed: %v\n", id, ferr)
			}
			fmt.Printf("run=%s status=%s franchises=%d failed=%d\n", report.RunId, report.Status(), len(report.Franchises), len(report.Failed))
		}
	}

	if *export {
		if req.FranchiseId == "" {
			fmt.Fprintln(os.Stderr, "-export requires -franchise-id")
			os.Exit(2)
		}
		if err := exportFranchise(ctx, store, cfg, req.FranchiseId, now, *out); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func exportFranchise(ctx context.Context, store reports.Reader, cfg config.AnalyticsConfig, franchiseID string, now time.Time, out string) error {
	if out != "" {
		data, err := reports.ExportFranchise(ctx, store, franchiseID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("exported %s to %s\n", franchiseID, out)
		return nil
	}
	uri, err := reports.ExportToGCS(ctx, store, cfg.ExportBucket, reports.ObjectName(franchiseID, now), franchiseID)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", franchiseID, uri)
	return nil
}
