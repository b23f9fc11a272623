package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Franchise{},
		&OrderDocument{}, &FeedbackDocument{},
		&AnalyticsSummary{}, &CashFlowForecast{},
		&AnalyticsRun{},
	)
}
