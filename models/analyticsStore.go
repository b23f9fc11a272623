package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsStore is the gorm-backed record store shared by every pipeline run.
type AnalyticsStore struct {
	db *gorm.DB
}

func NewAnalyticsStore(db *gorm.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

func (s *AnalyticsStore) DB() *gorm.DB {
	return s.db
}

/* franchises */

func (s *AnalyticsStore) ListFranchiseIds(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(config.SkipTenantScope(ctx)).
		Model(&Franchise{}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list franchises: %w", err)
	}
	return ids, nil
}

func (s *AnalyticsStore) SaveFranchise(ctx context.Context, f *Franchise) error {
	return s.db.WithContext(ctx).Save(f).Error
}

/* raw documents */

// ListOrderDocuments returns the franchise's orders plus orders without a franchise column,
// or every order when franchiseId is empty. Orders without a column are attributed by their
// payload's franchiseId, falling back to DefaultFranchiseId.
func (s *AnalyticsStore) ListOrderDocuments(ctx context.Context, franchiseId string) ([]OrderDocument, error) {
	var docs []OrderDocument
	q := s.db.WithContext(config.SkipTenantScope(ctx)).Model(&OrderDocument{})
	if franchiseId != "" {
		q = q.Where("franchise_id = ? OR franchise_id IS NULL", franchiseId)
	}
	if err := q.Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return docs, nil
}

// ListFeedbackDocuments returns the franchise's feedback plus unscoped feedback, or every
// feedback document when franchiseId is empty.
func (s *AnalyticsStore) ListFeedbackDocuments(ctx context.Context, franchiseId string) ([]FeedbackDocument, error) {
	var docs []FeedbackDocument
	q := s.db.WithContext(config.SkipTenantScope(ctx)).Model(&FeedbackDocument{})
	if franchiseId != "" {
		q = q.Where("franchise_id = ? OR franchise_id IS NULL", franchiseId)
	}
	if err := q.Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return docs, nil
}

func (s *AnalyticsStore) SaveOrderDocument(ctx context.Context, doc *OrderDocument) error {
	return s.db.WithContext(ctx).Save(doc).Error
}

func (s *AnalyticsStore) SaveFeedbackDocument(ctx context.Context, doc *FeedbackDocument) error {
	return s.db.WithContext(ctx).Save(doc).Error
}

/* summaries */

// LatestSummaries returns up to limit summaries of periodType ordered by period descending.
func (s *AnalyticsStore) LatestSummaries(ctx context.Context, franchiseId, periodType string, limit int) ([]AnalyticsSummary, error) {
	var rows []AnalyticsSummary
	if err := s.db.WithContext(ctx).
		Where("franchise_id = ? AND period_type = ?", franchiseId, periodType).
		Order("period DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest summaries: %w", err)
	}
	return rows, nil
}

func (s *AnalyticsStore) ListSummaries(ctx context.Context, franchiseId string) ([]AnalyticsSummary, error) {
	var rows []AnalyticsSummary
	if err := s.db.WithContext(ctx).
		Where("franchise_id = ?", franchiseId).
		Order("period_type, period").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return rows, nil
}

// GetSummary reads through the report cache when it is enabled.
func (s *AnalyticsStore) GetSummary(ctx context.Context, franchiseId, periodType, period string) (*AnalyticsSummary, error) {
	key := summaryCacheKey(franchiseId, periodType, period)
	if config.ReportCacheEnabled() {
		var cached AnalyticsSummary
		if ok, err := config.GetRedisObject(key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	var row AnalyticsSummary
	err := s.db.WithContext(ctx).
		Where("franchise_id = ? AND period_type = ? AND period = ?", franchiseId, periodType, period).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	if config.ReportCacheEnabled() {
		if err := config.SetRedisObject(key, &row, reportCacheTTL()); err != nil {
			config.LogError(config.GetLogger(), "models", "GetSummary", "cache summary", key, err)
		}
	}
	return &row, nil
}

// UpsertSummary creates or updates the row keyed by (franchise, period type, period).
// With columns only those are overwritten on conflict; without, every non-key column is.
func (s *AnalyticsStore) UpsertSummary(ctx context.Context, summary *AnalyticsSummary, columns ...string) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "franchise_id"}, {Name: "period_type"}, {Name: "period"}},
	}
	if len(columns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(columns)
	} else {
		onConflict.UpdateAll = true
	}
	if err := s.db.WithContext(ctx).Clauses(onConflict).Create(summary).Error; err != nil {
		return fmt.Errorf("upsert summary %s/%s: %w", summary.FranchiseId, summary.Period, err)
	}
	if err := config.RemoveRedisKey(summaryCacheKey(summary.FranchiseId, summary.PeriodType, summary.Period)); err != nil {
		config.LogError(config.GetLogger(), "models", "UpsertSummary", "evict cached summary", summary.FranchiseId, err)
	}
	return nil
}

/* forecasts */

// LatestForecastBefore returns the newest forecast with a period strictly before period,
// or nil when the chain is empty.
func (s *AnalyticsStore) LatestForecastBefore(ctx context.Context, franchiseId, period string) (*CashFlowForecast, error) {
	var rows []CashFlowForecast
	if err := s.db.WithContext(ctx).
		Where("franchise_id = ? AND period < ?", franchiseId, period).
		Order("period DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest forecast: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *AnalyticsStore) ListForecasts(ctx context.Context, franchiseId string) ([]CashFlowForecast, error) {
	var rows []CashFlowForecast
	if err := s.db.WithContext(ctx).
		Where("franchise_id = ?", franchiseId).
		Order("period").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	return rows, nil
}

func (s *AnalyticsStore) UpsertForecast(ctx context.Context, forecast *CashFlowForecast) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "franchise_id"}, {Name: "period"}},
		UpdateAll: true,
	}
	if err := s.db.WithContext(ctx).Clauses(onConflict).Create(forecast).Error; err != nil {
		return fmt.Errorf("upsert forecast %s/%s: %w", forecast.FranchiseId, forecast.Period, err)
	}
	return nil
}

/* runs */

func (s *AnalyticsStore) CreateRun(ctx context.Context, run *AnalyticsRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.RunId)
		}
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) FinishRun(ctx context.Context, run *AnalyticsRun) error {
	return s.db.WithContext(ctx).Model(&AnalyticsRun{}).
		Where("run_id = ?", run.RunId).
		Updates(map[string]interface{}{
			"status":          run.Status,
			"franchise_count": run.FranchiseCount,
			"failed_count":    run.FailedCount,
			"errors_json":     run.ErrorsJSON,
			"finished_at":     run.FinishedAt,
			"duration_ms":     run.DurationMs,
		}).Error
}

func summaryCacheKey(franchiseId, periodType, period string) string {
	return "AnalyticsSummary:" + franchiseId + ":" + periodType + ":" + period
}

func reportCacheTTL() time.Duration {
	return utils.DurationFromEnv("REPORT_CACHE_TTL_SECONDS", 120*time.Second)
}

func (s *AnalyticsStore) GetRun(ctx context.Context, runId string) (*AnalyticsRun, error) {
	var run AnalyticsRun
	err := s.db.WithContext(ctx).Where("run_id = ?", runId).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}
