package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// DurationFromEnv reads a whole number of seconds.
func DurationFromEnv(key string, def time.Duration) time.Duration {
	n := IntFromEnv(key, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
