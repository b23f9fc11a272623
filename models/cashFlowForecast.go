package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ForecastSourceAuto = "auto"
	ForecastNoteAuto   = "Auto-generated from analytics summaries."
	ForecastVersion    = 1
)

// CashFlowForecast is one link of a franchise's forecast chain. OpeningBalance is the
// previous link's ProjectedClosingBalance.
type CashFlowForecast struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	FranchiseId string `gorm:"size:64;not null;uniqueIndex:uniq_forecast_key,priority:1" json:"franchise_id"`
	Period      string `gorm:"size:16;not null;uniqueIndex:uniq_forecast_key,priority:2;index" json:"period"`

	OpeningBalance          decimal.Decimal `gorm:"type:decimal(20,4)" json:"opening_balance"`
	ProjectedInflow         decimal.Decimal `gorm:"type:decimal(20,4)" json:"projected_inflow"`
	ProjectedOutflow        decimal.Decimal `gorm:"type:decimal(20,4)" json:"projected_outflow"`
	ProjectedClosingBalance decimal.Decimal `gorm:"type:decimal(20,4)" json:"projected_closing_balance"`

	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	ForecastSource  string    `gorm:"size:20" json:"forecast_source"`
	Note            string    `gorm:"size:255" json:"note"`
	ForecastVersion int       `json:"forecast_version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}
