package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
)

type Job string

const (
	JobWeeklyRollup     Job = "weekly_rollup"
	JobMonthlyRollup    Job = "monthly_rollup"
	JobCashFlowForecast Job = "cash_flow_forecast"
)

var Jobs = []Job{JobWeeklyRollup, JobMonthlyRollup, JobCashFlowForecast}

func ParseJob(s string) (Job, error) {
	for _, j := range Jobs {
		if string(j) == s {
			return j, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJob, s)
}

// Store is everything the pipeline reads and writes.
// *models.AnalyticsStore implements it.
type Store interface {
	ForecastReader
	ListFranchiseIds(ctx context.Context) ([]string, error)
	ListOrderDocuments(ctx context.Context, franchiseId string) ([]models.OrderDocument, error)
	ListFeedbackDocuments(ctx context.Context, franchiseId string) ([]models.FeedbackDocument, error)
	UpsertSummary(ctx context.Context, summary *models.AnalyticsSummary, columns ...string) error
	UpsertForecast(ctx context.Context, forecast *models.CashFlowForecast) error
	CreateRun(ctx context.Context, run *models.AnalyticsRun) error
	FinishRun(ctx context.Context, run *models.AnalyticsRun) error
}

type Options struct {
	Clock  Clock
	Locker Locker
	Logger *logrus.Logger
	// Concurrency > 1 runs franchises in parallel during a fan-out.
	Concurrency    int
	SummaryHistory int
	// StrictWeekly counts only orders with a numeric total in the weekly rollup.
	StrictWeekly bool
}

// Service runs the analytics jobs against a Store.
type Service struct {
	store          Store
	clock          Clock
	locker         Locker
	logger         *logrus.Logger
	tracer         trace.Tracer
	concurrency    int
	summaryHistory int
	strictWeekly   bool
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:          store,
		clock:          opts.Clock,
		locker:         opts.Locker,
		logger:         opts.Logger,
		tracer:         otel.Tracer("github.com/mmdatafocus/franchise_analytics/analytics"),
		concurrency:    opts.Concurrency,
		summaryHistory: opts.SummaryHistory,
		strictWeekly:   opts.StrictWeekly,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.locker == nil {
		s.locker = NewKeyedMutex()
	}
	if s.logger == nil {
		s.logger = config.GetLogger()
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.summaryHistory < 1 {
		s.summaryHistory = DefaultSummaryHistory
	}
	return s
}

func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

// runJob runs one job for one franchise under the franchise lock.
func (s *Service) runJob(ctx context.Context, job Job, franchiseID string, now time.Time, wait bool) (err error) {
	if franchiseID == "" {
		return ErrFranchiseRequired
	}
	ctx, span := s.tracer.Start(ctx, "analytics."+string(job),
		trace.WithAttributes(
			attribute.String("franchise_id", franchiseID),
			attribute.String("job", string(job)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	release, err := s.locker.Acquire(ctx, franchiseID, wait)
	if err != nil {
		return err
	}
	defer release()

	ctx = utils.SetFranchiseIdInContext(ctx, franchiseID)
	switch job {
	case JobWeeklyRollup:
		_, err = s.RunWeeklyRollup(ctx, franchiseID, now)
	case JobMonthlyRollup:
		_, err = s.RunMonthlyRollup(ctx, franchiseID, now)
	case JobCashFlowForecast:
		_, err = s.RunCashFlowForecast(ctx, franchiseID, now)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	return err
}

// RunWeeklyRollup writes the trailing-seven-day revenue summary. Only the weekly columns are
// overwritten on an existing row.
func (s *Service) RunWeeklyRollup(ctx context.Context, franchiseID string, now time.Time) (*models.AnalyticsSummary, error) {
	w := CurrentWeekWindow(now)
	docs, err := s.store.ListOrderDocuments(ctx, franchiseID)
	if err != nil {
		return nil, err
	}
	orders := SelectOrders(DecodeOrders(docs), franchiseID, w)

	var stats OrderStats
	if s.strictWeekly {
		stats = AggregateWeeklyOrders(orders)
	} else {
		stats = AggregateOrders(orders)
	}

	summary := &models.AnalyticsSummary{
		FranchiseId:       franchiseID,
		PeriodType:        models.PeriodTypeWeekly,
		Period:            w.Period,
		StartDate:         w.Start,
		EndDate:           w.End,
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      stats.TotalRevenue,
		AverageOrderValue: stats.AverageOrderValue,
		UpdatedAt:         now.UTC(),
	}
	if err := s.store.UpsertSummary(ctx, summary, models.WeeklySummaryColumns...); err != nil {
		return nil, err
	}

	s.entry(ctx, franchiseID).WithFields(logrus.Fields{
		"total_orders":  stats.TotalOrders,
		"total_revenue": stats.TotalRevenue.String(),
	}).Info("weekly rollup written")
	return summary, nil
}

// RunMonthlyRollup writes the full summary of now's calendar month, feedback included.
func (s *Service) RunMonthlyRollup(ctx context.Context, franchiseID string, now time.Time) (*models.AnalyticsSummary, error) {
	w := CurrentMonthWindow(now)
	orderDocs, err := s.store.ListOrderDocuments(ctx, franchiseID)
	if err != nil {
		return nil, err
	}
	feedbackDocs, err := s.store.ListFeedbackDocuments(ctx, franchiseID)
	if err != nil {
		return nil, err
	}

	orders := SelectOrders(DecodeOrders(orderDocs), franchiseID, w)
	feedback := SelectFeedback(DecodeFeedbacks(feedbackDocs), franchiseID, orders, w)
	stats := AggregateOrders(orders)
	feedbackStats := AggregateFeedback(feedback, stats.TotalOrders)

	summary := &models.AnalyticsSummary{
		FranchiseId:       franchiseID,
		PeriodType:        models.PeriodTypeMonthly,
		Period:            w.Period,
		StartDate:         w.Start,
		EndDate:           w.End,
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      stats.TotalRevenue,
		AverageOrderValue: stats.AverageOrderValue,
		UniqueCustomers:   stats.UniqueCustomers,
		MostPopularItem:   stats.MostPopularItem,
		CancelledOrders:   stats.CancelledOrders,
		AddOnRevenue:      stats.AddOnRevenue,
		UpdatedAt:         now.UTC(),
	}
	summary.OrderStatusBreakdown = datatypes.NewJSONType(stats.StatusBreakdown)
	summary.ToppingCounts = datatypes.NewJSONType(stats.ToppingCounts)
	summary.AddOnCounts = datatypes.NewJSONType(stats.AddOnCounts)
	summary.ComboCounts = datatypes.NewJSONType(stats.ComboCounts)
	summary.FeedbackStats = datatypes.NewJSONType(feedbackStats)

	if err := s.store.UpsertSummary(ctx, summary); err != nil {
		return nil, err
	}

	s.entry(ctx, franchiseID).WithFields(logrus.Fields{
		"period":          w.Period,
		"total_orders":    stats.TotalOrders,
		"total_revenue":   stats.TotalRevenue.String(),
		"total_feedbacks": feedbackStats.TotalFeedbacks,
	}).Info("monthly rollup written")
	return summary, nil
}

// RunCashFlowForecast writes next month's forecast.
func (s *Service) RunCashFlowForecast(ctx context.Context, franchiseID string, now time.Time) (*models.CashFlowForecast, error) {
	forecast, err := ComputeForecast(ctx, s.store, franchiseID, now, s.summaryHistory)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertForecast(ctx, forecast); err != nil {
		return nil, err
	}

	s.entry(ctx, franchiseID).WithFields(logrus.Fields{
		"period":          forecast.Period,
		"opening_balance": forecast.OpeningBalance.String(),
		"inflow":          forecast.ProjectedInflow.String(),
		"closing_balance": forecast.ProjectedClosingBalance.String(),
	}).Info("cash flow forecast written")
	return forecast, nil
}

func (s *Service) entry(ctx context.Context, franchiseID string) *logrus.Entry {
	fields := logrus.Fields{"franchise_id": franchiseID}
	if runID, ok := utils.GetRunIdFromContext(ctx); ok {
		fields["run_id"] = runID
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	return s.logger.WithFields(fields)
}
