package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseInstant normalizes the timestamp encodings found in raw documents:
//   - a native time.Time (or *time.Time)
//   - a wrapped seconds-since-epoch map: {"_seconds": n, "_nanoseconds": m} or
//     {"seconds": n, "nanos": m}
//   - a date string, or a number / numeric string of epoch milliseconds
//
// ok is false when v cannot be read as an instant.
func ParseInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case map[string]any:
		return parseWrappedSeconds(t)
	case string:
		return parseInstantString(t)
	default:
		if ms, ok := numberFromAny(v); ok {
			return fromEpochMillis(ms)
		}
		return time.Time{}, false
	}
}

func parseWrappedSeconds(m map[string]any) (time.Time, bool) {
	secs, ok := numberFromAny(m["_seconds"])
	if !ok {
		secs, ok = numberFromAny(m["seconds"])
	}
	if !ok {
		return time.Time{}, false
	}
	var nanos float64
	for _, key := range []string{"_nanoseconds", "nanoseconds", "nanos"} {
		if n, found := numberFromAny(m[key]); found {
			nanos = n
			break
		}
	}
	return time.Unix(int64(secs), int64(nanos)).UTC(), true
}

func parseInstantString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpochMillis(ms)
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpochMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// numberFromAny accepts numeric kinds only; strings are not numbers here.
func numberFromAny(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
