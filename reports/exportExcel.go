package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet  = "Summaries"
	ForecastSheet = "Forecasts"

	XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var summaryHeadings = []string{
	"PeriodType", "Period", "StartDate", "EndDate", "TotalOrders", "TotalRevenue",
	"AverageOrderValue", "UniqueCustomers", "MostPopularItem", "CancelledOrders",
	"AddOnRevenue", "AverageStarRating", "TotalFeedbacks", "ParticipationRate",
}

var forecastHeadings = []string{
	"Period", "StartDate", "EndDate", "OpeningBalance", "ProjectedInflow",
	"ProjectedOutflow", "ProjectedClosingBalance", "Source", "Note",
}

// Reader is the part of the store an export reads.
type Reader interface {
	ListSummaries(ctx context.Context, franchiseId string) ([]models.AnalyticsSummary, error)
	ListForecasts(ctx context.Context, franchiseId string) ([]models.CashFlowForecast, error)
}

// ExportFranchise renders every summary and forecast of franchiseId as an xlsx workbook.
func ExportFranchise(ctx context.Context, r Reader, franchiseId string) ([]byte, error) {
	summaries, err := r.ListSummaries(ctx, franchiseId)
	if err != nil {
		return nil, err
	}
	forecasts, err := r.ListForecasts(ctx, franchiseId)
	if err != nil {
		return nil, err
	}

	f, err := BuildWorkbook(summaries, forecasts)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func BuildWorkbook(summaries []models.AnalyticsSummary, forecasts []models.CashFlowForecast) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ForecastSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, SummarySheet, 1, toRow(summaryHeadings)); err != nil {
		return nil, err
	}
	for i, s := range summaries {
		fs := s.FeedbackStats.Data()
		var avgRating any = ""
		if fs.AverageStarRating != nil {
			avgRating = *fs.AverageStarRating
		}
		row := []any{
			s.PeriodType,
			s.Period,
			formatTime(s.StartDate),
			formatTime(s.EndDate),
			s.TotalOrders,
			s.TotalRevenue.InexactFloat64(),
			s.AverageOrderValue.InexactFloat64(),
			s.UniqueCustomers,
			s.MostPopularItem,
			s.CancelledOrders,
			s.AddOnRevenue.InexactFloat64(),
			avgRating,
			fs.TotalFeedbacks,
			fs.ParticipationRate,
		}
		if err := writeRow(f, SummarySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, ForecastSheet, 1, toRow(forecastHeadings)); err != nil {
		return nil, err
	}
	for i, fc := range forecasts {
		row := []any{
			fc.Period,
			formatTime(fc.StartDate),
			formatTime(fc.EndDate),
			fc.OpeningBalance.InexactFloat64(),
			fc.ProjectedInflow.InexactFloat64(),
			fc.ProjectedOutflow.InexactFloat64(),
			fc.ProjectedClosingBalance.InexactFloat64(),
			fc.ForecastSource,
			fc.Note,
		}
		if err := writeRow(f, ForecastSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ObjectName is where an export for franchiseId taken at at is stored.
func ObjectName(franchiseId string, at time.Time) string {
	return fmt.Sprintf("analytics/%s/%s.xlsx", franchiseId, at.UTC().Format("20060102-150405"))
}

func writeRow(f *excelize.File, sheet string, rowNo int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toRow(headings []string) []any {
	row := make([]any, len(headings))
	for i, h := range headings {
		row[i] = h
	}
	return row
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
