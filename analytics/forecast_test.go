package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/shopspring/decimal"
)

func seedMonthly(s *fakeStore, franchiseId string, revenue map[string]int64) {
	for period, r := range revenue {
		s.summaries[franchiseId+"|monthly|"+period] = models.AnalyticsSummary{
			FranchiseId:  franchiseId,
			PeriodType:   models.PeriodTypeMonthly,
			Period:       period,
			TotalRevenue: decimal.NewFromInt(r),
		}
	}
}

func TestComputeForecast_ChainsPriorClosingBalance(t *testing.T) {
	store := newFakeStore("f1")
	seedMonthly(store, "f1", map[string]int64{"2024-10": 200, "2024-11": 300, "2024-12": 400, "2024-09": 9999})
	store.forecasts["f1|2024-12"] = models.CashFlowForecast{
		FranchiseId:             "f1",
		Period:                  "2024-12",
		ProjectedClosingBalance: decimal.NewFromInt(100),
	}

	now := time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)
	f, err := ComputeForecast(context.Background(), store, "f1", now, 3)
	if err != nil {
		t.Fatalf("ComputeForecast error: %v", err)
	}
	if f.Period != "2025-01" {
		t.Fatalf("expected period 2025-01, got %s", f.Period)
	}
	if f.OpeningBalance.String() != "100" || f.ProjectedInflow.String() != "300" ||
		f.ProjectedOutflow.String() != "0" || f.ProjectedClosingBalance.String() != "400" {
		t.Fatalf("unexpected forecast opening=%s inflow=%s outflow=%s closing=%s",
			f.OpeningBalance, f.ProjectedInflow, f.ProjectedOutflow, f.ProjectedClosingBalance)
	}
	if f.ForecastSource != "auto" || f.ForecastVersion != 1 || f.Note != models.ForecastNoteAuto {
		t.Fatalf("unexpected metadata %+v", f)
	}
}

func TestComputeForecast_ZeroBaseline(t *testing.T) {
	store := newFakeStore("f1")
	f, err := ComputeForecast(context.Background(), store, "f1", time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("ComputeForecast error: %v", err)
	}
	if !f.OpeningBalance.IsZero() || !f.ProjectedInflow.IsZero() || !f.ProjectedClosingBalance.IsZero() {
		t.Fatalf("expected zero forecast, got %+v", f)
	}
}

func TestComputeForecast_IgnoresForecastForSamePeriod(t *testing.T) {
	store := newFakeStore("f1")
	seedMonthly(store, "f1", map[string]int64{"2025-04": 50})
	store.forecasts["f1|2025-06"] = models.CashFlowForecast{FranchiseId: "f1", Period: "2025-06", ProjectedClosingBalance: decimal.NewFromInt(70)}
	store.forecasts["f1|2025-05"] = models.CashFlowForecast{FranchiseId: "f1", Period: "2025-05", ProjectedClosingBalance: decimal.NewFromInt(20)}

	f, err := ComputeForecast(context.Background(), store, "f1", time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("ComputeForecast error: %v", err)
	}
	if f.OpeningBalance.String() != "20" || f.ProjectedClosingBalance.String() != "70" {
		t.Fatalf("expected opening 20 closing 70, got %s / %s", f.OpeningBalance, f.ProjectedClosingBalance)
	}
}

func TestComputeForecast_RequiresFranchise(t *testing.T) {
	_, err := ComputeForecast(context.Background(), newFakeStore(), "", time.Now(), 3)
	if !errors.Is(err, ErrFranchiseRequired) {
		t.Fatalf("expected ErrFranchiseRequired, got %v", err)
	}
}
