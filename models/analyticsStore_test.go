package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *AnalyticsStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	// every pooled connection would otherwise open its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.InstallPlugins(db))
	require.NoError(t, MigrateTable(db))
	return NewAnalyticsStore(db)
}

func monthlySummary(franchiseId, period string, revenue int64) *AnalyticsSummary {
	return &AnalyticsSummary{
		FranchiseId:     franchiseId,
		PeriodType:      PeriodTypeMonthly,
		Period:          period,
		TotalOrders:     2,
		TotalRevenue:    decimal.NewFromInt(revenue),
		MostPopularItem: "Latte",
		ToppingCounts:   datatypes.NewJSONType(CountMap{"Foam": 2}),
		UpdatedAt:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpsertSummary_IsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSummary(ctx, monthlySummary("f1", "2025-01", 100)))
	require.NoError(t, store.UpsertSummary(ctx, monthlySummary("f1", "2025-01", 250)))

	var count int64
	require.NoError(t, store.DB().Model(&AnalyticsSummary{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := store.GetSummary(ctx, "f1", PeriodTypeMonthly, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, "250", got.TotalRevenue.String())
	assert.Equal(t, 2, got.ToppingCounts.Data()["Foam"])
}

func TestUpsertSummary_MergeColumnsKeepOtherFields(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	existing := monthlySummary("f1", "weekly", 100)
	existing.PeriodType = PeriodTypeWeekly
	require.NoError(t, store.UpsertSummary(ctx, existing))

	weekly := &AnalyticsSummary{
		FranchiseId:  "f1",
		PeriodType:   PeriodTypeWeekly,
		Period:       "weekly",
		TotalOrders:  7,
		TotalRevenue: decimal.NewFromInt(70),
		UpdatedAt:    time.Date(2025, 2, 9, 3, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertSummary(ctx, weekly, WeeklySummaryColumns...))

	got, err := store.GetSummary(ctx, "f1", PeriodTypeWeekly, "weekly")
	require.NoError(t, err)
	assert.Equal(t, 7, got.TotalOrders)
	assert.Equal(t, "70", got.TotalRevenue.String())
	assert.Equal(t, "Latte", got.MostPopularItem)
	assert.True(t, got.UpdatedAt.Equal(weekly.UpdatedAt))
}

func TestGetSummary_NotFound(t *testing.T) {
	store := setupStore(t)
	_, err := store.GetSummary(context.Background(), "f1", PeriodTypeMonthly, "2025-01")
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestLatestSummaries_NewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	for i, period := range []string{"2024-09", "2024-12", "2024-10", "2024-11"} {
		require.NoError(t, store.UpsertSummary(ctx, monthlySummary("f1", period, int64(100*(i+1)))))
	}
	require.NoError(t, store.UpsertSummary(ctx, monthlySummary("f2", "2025-01", 1)))

	rows, err := store.LatestSummaries(ctx, "f1", PeriodTypeMonthly, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-12", "2024-11", "2024-10"}, []string{rows[0].Period, rows[1].Period, rows[2].Period})
}

func TestLatestForecastBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	none, err := store.LatestForecastBefore(ctx, "f1", "2025-01")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, p := range []string{"2024-11", "2024-12", "2025-01"} {
		require.NoError(t, store.UpsertForecast(ctx, &CashFlowForecast{
			FranchiseId:             "f1",
			Period:                  p,
			ProjectedClosingBalance: decimal.RequireFromString("10.5"),
			ForecastSource:          ForecastSourceAuto,
		}))
	}
	// rewriting a period updates in place
	require.NoError(t, store.UpsertForecast(ctx, &CashFlowForecast{
		FranchiseId:             "f1",
		Period:                  "2024-12",
		ProjectedClosingBalance: decimal.NewFromInt(400),
	}))

	prior, err := store.LatestForecastBefore(ctx, "f1", "2025-01")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "2024-12", prior.Period)
	assert.Equal(t, "400", prior.ProjectedClosingBalance.String())

	all, err := store.ListForecasts(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListDocuments_FranchiseScoping(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	f1, f2 := "f1", "f2"

	require.NoError(t, store.SaveOrderDocument(ctx, &OrderDocument{ID: "o1", FranchiseId: &f1, Data: datatypes.JSONMap{"total": 10}}))
	require.NoError(t, store.SaveOrderDocument(ctx, &OrderDocument{ID: "o2", FranchiseId: &f2, Data: datatypes.JSONMap{"total": 20}}))
	require.NoError(t, store.SaveOrderDocument(ctx, &OrderDocument{ID: "o3", Data: datatypes.JSONMap{"franchiseId": "f1"}}))
	require.NoError(t, store.SaveFeedbackDocument(ctx, &FeedbackDocument{ID: "fb1", FranchiseId: &f2, Data: datatypes.JSONMap{"rating": 4}}))
	require.NoError(t, store.SaveFeedbackDocument(ctx, &FeedbackDocument{ID: "fb2", Data: datatypes.JSONMap{"rating": 5}}))

	orders, err := store.ListOrderDocuments(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o3"}, []string{orders[0].ID, orders[1].ID})

	all, err := store.ListOrderDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	feedback, err := store.ListFeedbackDocuments(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, feedback, 1)
	assert.Equal(t, "fb2", feedback[0].ID)
}

func TestTenantGuard_ScopesQueriesToContextFranchise(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertSummary(ctx, monthlySummary("f1", "2025-01", 1)))
	require.NoError(t, store.UpsertSummary(ctx, monthlySummary("f2", "2025-01", 2)))
	require.NoError(t, store.SaveFranchise(ctx, &Franchise{ID: "f1"}))
	require.NoError(t, store.SaveFranchise(ctx, &Franchise{ID: "f2"}))

	scoped := utils.SetFranchiseIdInContext(ctx, "f2")
	var rows []AnalyticsSummary
	require.NoError(t, store.DB().WithContext(scoped).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "f2", rows[0].FranchiseId)

	// franchises have no franchise_id column; the fan-out list is never scoped
	ids, err := store.ListFranchiseIds(scoped)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, ids)
}

func TestRunRecords(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	started := time.Now()

	run := &AnalyticsRun{RunId: "run-1", Job: "weekly_rollup", TriggeredBy: RunTriggerSchedule, Status: RunStatusRunning, StartedAt: &started}
	require.NoError(t, store.CreateRun(ctx, run))

	finished := started.Add(time.Second)
	run.Status = RunStatusPartial
	run.FranchiseCount = 3
	run.FailedCount = 1
	run.ErrorsJSON = datatypes.JSON(`{"f3":"boom"}`)
	run.FinishedAt = &finished
	run.DurationMs = 1000
	require.NoError(t, store.FinishRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusPartial, got.Status)
	assert.Equal(t, 1, got.FailedCount)
	assert.JSONEq(t, `{"f3":"boom"}`, string(got.ErrorsJSON))
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.False(t, IsDuplicateKeyErr(&mysql.MySQLError{Number: 1146}))
	assert.False(t, IsDuplicateKeyErr(errors.New("other")))
}
