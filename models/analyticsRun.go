package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusPartial = "partial"
)

const (
	RunTriggerSchedule = "schedule"
	RunTriggerOnDemand = "on_demand"
	RunTriggerCLI      = "cli"
)

// AnalyticsRun records what one fan-out or on-demand run did.
type AnalyticsRun struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	RunId             string         `gorm:"size:64;not null;uniqueIndex" json:"run_id"`
	Job               string         `gorm:"size:32;not null;index" json:"job"`
	TriggeredBy       string         `gorm:"size:20" json:"triggered_by"`
	TargetFranchiseId string         `gorm:"size:64" json:"target_franchise_id"`
	Status            string         `gorm:"size:20;not null" json:"status"`
	FranchiseCount    int            `json:"franchise_count"`
	FailedCount       int            `json:"failed_count"`
	ErrorsJSON        datatypes.JSON `json:"errors"`
	StartedAt         *time.Time     `json:"started_at"`
	FinishedAt        *time.Time     `json:"finished_at"`
	DurationMs        int64          `json:"duration_ms"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
