package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/shopspring/decimal"
)

const DefaultSummaryHistory = 3

// ForecastReader is the part of the store the forecast engine reads.
type ForecastReader interface {
	LatestSummaries(ctx context.Context, franchiseId, periodType string, limit int) ([]models.AnalyticsSummary, error)
	LatestForecastBefore(ctx context.Context, franchiseId, period string) (*models.CashFlowForecast, error)
}

// ComputeForecast projects next month's cash flow for franchiseID:
//
//	inflow  = mean total revenue over the latest `history` monthly summaries (0 when none)
//	outflow = 0
//	opening = closing balance of the newest earlier forecast (0 when none)
//	closing = opening + inflow - outflow
//
// The result is not written.
func ComputeForecast(ctx context.Context, r ForecastReader, franchiseID string, now time.Time, history int) (*models.CashFlowForecast, error) {
	if franchiseID == "" {
		return nil, ErrFranchiseRequired
	}
	if history < 1 {
		history = DefaultSummaryHistory
	}
	w := NextMonthWindow(now)

	summaries, err := r.LatestSummaries(ctx, franchiseID, models.PeriodTypeMonthly, history)
	if err != nil {
		return nil, fmt.Errorf("read summaries: %w", err)
	}
	inflow := decimal.Zero
	if len(summaries) > 0 {
		sum := decimal.Zero
		for _, s := range summaries {
			sum = sum.Add(s.TotalRevenue)
		}
		inflow = sum.Div(decimal.NewFromInt(int64(len(summaries))))
	}

	prior, err := r.LatestForecastBefore(ctx, franchiseID, w.Period)
	if err != nil {
		return nil, fmt.Errorf("read prior forecast: %w", err)
	}
	opening := decimal.Zero
	if prior != nil {
		opening = prior.ProjectedClosingBalance
	}

	outflow := decimal.Zero
	return &models.CashFlowForecast{
		FranchiseId:             franchiseID,
		Period:                  w.Period,
		StartDate:               w.Start,
		EndDate:                 w.End,
		OpeningBalance:          opening,
		ProjectedInflow:         inflow,
		ProjectedOutflow:        outflow,
		ProjectedClosingBalance: opening.Add(inflow).Sub(outflow),
		ForecastSource:          models.ForecastSourceAuto,
		Note:                    models.ForecastNoteAuto,
		ForecastVersion:         models.ForecastVersion,
		UpdatedAt:               now.UTC(),
	}, nil
}
