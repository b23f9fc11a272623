package config

import (
	"os"
	"strings"
)

// ReportCacheEnabled caches written summaries in Redis for read-through lookups.
//
// Set via env:
// - ENABLE_REPORT_CACHE=true
func ReportCacheEnabled() bool {
	return envBool("ENABLE_REPORT_CACHE", false)
}

// StrictWeeklyRollup keeps the weekly rollup on the "numeric totals only" counting policy.
// Turning it off makes the weekly rollup count every order like the monthly one.
//
// Set via env:
// - STRICT_WEEKLY_ROLLUP=false
func StrictWeeklyRollup() bool {
	return envBool("STRICT_WEEKLY_ROLLUP", true)
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
