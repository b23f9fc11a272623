package analytics

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseInstant_Encodings(t *testing.T) {
	want := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	native := want
	cases := []struct {
		name string
		in   any
	}{
		{"native", want},
		{"native pointer", &native},
		{"underscore seconds", map[string]any{"_seconds": float64(want.Unix()), "_nanoseconds": float64(0)}},
		{"seconds", map[string]any{"seconds": want.Unix()}},
		{"rfc3339", "2025-01-15T12:00:00Z"},
		{"rfc3339 offset", "2025-01-15T14:00:00+02:00"},
		{"sql datetime", "2025-01-15 12:00:00"},
		{"epoch millis number", float64(want.UnixMilli())},
		{"epoch millis json number", json.Number("1736942400000")},
		{"epoch millis string", "1736942400000"},
	}
	for _, tc := range cases {
		got, ok := ParseInstant(tc.in)
		if !ok {
			t.Fatalf("%s: expected ok", tc.name)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, want, got)
		}
	}
}

func TestParseInstant_DateOnly(t *testing.T) {
	got, ok := ParseInstant("2025-01-15")
	if !ok || !got.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2025-01-15 midnight, got %s ok=%v", got, ok)
	}
}

func TestParseInstant_Unparseable(t *testing.T) {
	var nilTime *time.Time
	cases := []any{
		nil,
		"",
		"not a date",
		true,
		time.Time{},
		nilTime,
		map[string]any{"foo": 1},
		map[string]any{"_seconds": "soon"},
		[]any{1, 2},
	}
	for _, in := range cases {
		if got, ok := ParseInstant(in); ok {
			t.Fatalf("ParseInstant(%#v) expected not ok, got %s", in, got)
		}
	}
}
