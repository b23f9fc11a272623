package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PeriodTypeWeekly  = "weekly"
	PeriodTypeMonthly = "monthly"
)

// AnalyticsSummary is the rollup output for one (franchise, period type, period).
//
// Grain: (franchise_id, period_type, period). The row is derived data and is overwritten
// on every run for the same key.
type AnalyticsSummary struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FranchiseId string    `gorm:"size:64;not null;uniqueIndex:uniq_summary_key,priority:1" json:"franchise_id"`
	PeriodType  string    `gorm:"size:16;not null;uniqueIndex:uniq_summary_key,priority:2" json:"period_type"`
	Period      string    `gorm:"size:16;not null;uniqueIndex:uniq_summary_key,priority:3;index" json:"period"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`

	TotalOrders       int             `json:"total_orders"`
	TotalRevenue      decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_revenue"`
	AverageOrderValue decimal.Decimal `gorm:"type:decimal(20,4)" json:"average_order_value"`
	UniqueCustomers   int             `json:"unique_customers"`
	MostPopularItem   string          `gorm:"size:255" json:"most_popular_item"`
	CancelledOrders   int             `json:"cancelled_orders"`

	OrderStatusBreakdown datatypes.JSONType[CountMap] `json:"order_status_breakdown"`
	ToppingCounts        datatypes.JSONType[CountMap] `json:"topping_counts"`
	AddOnCounts          datatypes.JSONType[CountMap] `json:"add_on_counts"`
	ComboCounts          datatypes.JSONType[CountMap] `json:"combo_counts"`
	AddOnRevenue         decimal.Decimal              `gorm:"type:decimal(20,4)" json:"add_on_revenue"`

	FeedbackStats datatypes.JSONType[FeedbackStats] `json:"feedback_stats"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// CountMap accumulates quantities per label.
type CountMap map[string]int

// FeedbackStats is embedded in a monthly summary. Nil averages mean "no ratings".
type FeedbackStats struct {
	AverageStarRating *float64  `json:"averageStarRating"`
	TotalFeedbacks    int       `json:"totalFeedbacks"`
	ParticipationRate float64   `json:"participationRate"`
	OrderFeedback     ModeStats `json:"orderFeedback"`
	AppFeedback       ModeStats `json:"appFeedback"`
}

type ModeStats struct {
	AvgStarRating *float64           `json:"avgStarRating"`
	Count         int                `json:"count"`
	AvgCategories map[string]float64 `json:"avgCategories"`
}

// Columns written by the weekly rollup. Upserting with this list leaves the richer monthly
// fields of an existing row untouched.
var WeeklySummaryColumns = []string{
	"start_date", "end_date", "total_orders", "total_revenue", "average_order_value", "updated_at",
}
