package analytics

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mmdatafocus/franchise_analytics/models"
)

// fakeStore is an in-memory Store. failOrders makes ListOrderDocuments fail for a franchise;
// panicOrders makes it panic.
type fakeStore struct {
	mu sync.Mutex

	franchises  []string
	orders      []models.OrderDocument
	feedback    []models.FeedbackDocument
	summaries   map[string]models.AnalyticsSummary
	forecasts   map[string]models.CashFlowForecast
	runs        map[string]models.AnalyticsRun
	failOrders  map[string]bool
	panicOrders map[string]bool
	listErr     error

	summaryWrites int
}

func newFakeStore(franchises ...string) *fakeStore {
	return &fakeStore{
		franchises:  franchises,
		summaries:   make(map[string]models.AnalyticsSummary),
		forecasts:   make(map[string]models.CashFlowForecast),
		runs:        make(map[string]models.AnalyticsRun),
		failOrders:  make(map[string]bool),
		panicOrders: make(map[string]bool),
	}
}

func (s *fakeStore) ListFranchiseIds(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.franchises...), nil
}

func (s *fakeStore) ListOrderDocuments(ctx context.Context, franchiseId string) ([]models.OrderDocument, error) {
	if s.panicOrders[franchiseId] {
		panic("corrupt order index")
	}
	if s.failOrders[franchiseId] {
		return nil, errors.New("order store unavailable")
	}
	return s.orders, nil
}

func (s *fakeStore) ListFeedbackDocuments(ctx context.Context, franchiseId string) ([]models.FeedbackDocument, error) {
	return s.feedback, nil
}

func (s *fakeStore) LatestSummaries(ctx context.Context, franchiseId, periodType string, limit int) ([]models.AnalyticsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.AnalyticsSummary
	for _, row := range s.summaries {
		if row.FranchiseId == franchiseId && row.PeriodType == periodType {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Period > rows[j].Period })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *fakeStore) LatestForecastBefore(ctx context.Context, franchiseId, period string) (*models.CashFlowForecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.CashFlowForecast
	for _, f := range s.forecasts {
		if f.FranchiseId != franchiseId || f.Period >= period {
			continue
		}
		if best == nil || f.Period > best.Period {
			f := f
			best = &f
		}
	}
	return best, nil
}

func (s *fakeStore) UpsertSummary(ctx context.Context, summary *models.AnalyticsSummary, columns ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := summary.FranchiseId + "|" + summary.PeriodType + "|" + summary.Period
	existing, ok := s.summaries[key]
	if ok && len(columns) > 0 {
		existing.StartDate = summary.StartDate
		existing.EndDate = summary.EndDate
		existing.TotalOrders = summary.TotalOrders
		existing.TotalRevenue = summary.TotalRevenue
		existing.AverageOrderValue = summary.AverageOrderValue
		existing.UpdatedAt = summary.UpdatedAt
		s.summaries[key] = existing
	} else {
		s.summaries[key] = *summary
	}
	s.summaryWrites++
	return nil
}

func (s *fakeStore) UpsertForecast(ctx context.Context, forecast *models.CashFlowForecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts[forecast.FranchiseId+"|"+forecast.Period] = *forecast
	return nil
}

func (s *fakeStore) CreateRun(ctx context.Context, run *models.AnalyticsRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunId] = *run
	return nil
}

func (s *fakeStore) FinishRun(ctx context.Context, run *models.AnalyticsRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunId] = *run
	return nil
}

func (s *fakeStore) summary(franchiseId, periodType, period string) (models.AnalyticsSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.summaries[franchiseId+"|"+periodType+"|"+period]
	return row, ok
}

func (s *fakeStore) forecast(franchiseId, period string) (models.CashFlowForecast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.forecasts[franchiseId+"|"+period]
	return row, ok
}
