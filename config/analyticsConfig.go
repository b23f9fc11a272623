package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"
)

// AnalyticsConfig holds the pipeline tuning knobs.
type AnalyticsConfig struct {
	Port                  string `env:"ANALYTICS_PORT" envDefault:"8080"`
	Concurrency           int    `env:"ANALYTICS_CONCURRENCY" envDefault:"1"`
	LockTTLSeconds        int    `env:"ANALYTICS_LOCK_TTL_SECONDS" envDefault:"300"`
	LockWaitSeconds       int    `env:"ANALYTICS_LOCK_WAIT_SECONDS" envDefault:"60"`
	SummaryHistory        int    `env:"ANALYTICS_SUMMARY_HISTORY" envDefault:"3"`
	Topic                 string `env:"ANALYTICS_TOPIC" envDefault:"analytics-runs"`
	CreateTopic           bool   `env:"ANALYTICS_CREATE_TOPIC" envDefault:"false"`
	EnableWeeklySchedule  bool   `env:"ENABLE_WEEKLY_SCHEDULE" envDefault:"true"`
	EnableMonthlySchedule bool   `env:"ENABLE_MONTHLY_SCHEDULE" envDefault:"true"`
	EnablePushEndpoint    bool   `env:"ENABLE_ANALYTICS_PUSH_ENDPOINT" envDefault:"true"`
	ExportBucket          string `env:"ANALYTICS_EXPORT_BUCKET"`
}

func (c AnalyticsConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c AnalyticsConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// LoadAnalyticsConfig parses AnalyticsConfig from the environment (.env already loaded in init).
func LoadAnalyticsConfig() (AnalyticsConfig, error) {
	var cfg AnalyticsConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse analytics config: %w", err)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.SummaryHistory < 1 {
		cfg.SummaryHistory = 3
	}
	if cfg.LockTTLSeconds <= 0 {
		cfg.LockTTLSeconds = 300
	}
	if cfg.LockWaitSeconds < 0 {
		cfg.LockWaitSeconds = 0
	}
	return cfg, nil
}
