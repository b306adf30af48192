package utils

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"aapl", "AAPL"},
		{" tsla ", "TSLA"},
		{"$NVDA", "NVDA"},
		{"apple", "AAPL"},
		{"Google", "GOOGL"},
		{"sap.de", "SAP.DE"},
		{"UNKNOWNSTOCK", "UNKNOWNSTOCK"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeTicker(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseTickers(t *testing.T) {
	got := ParseTickers("aapl,tsla", "AAPL msft", " ;; ", "$NVDA")
	want := []string{"AAPL", "TSLA", "MSFT", "NVDA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTickers = %v, want %v", got, want)
	}
	if got := ParseTickers(); got != nil {
		t.Errorf("ParseTickers() = %v, want nil", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		year  int
		hour  int
	}{
		{"2026-01-13T10:15:30Z", 2026, 10},
		{"2026-01-13T10:15:30.123456", 2026, 10},
		{"2026-01-13T10:15:30", 2026, 10},
		{"2026-01-13 08:00:00", 2026, 8},
		{"2026-01-13", 2026, 0},
		{"Tue, 13 Jan 2026 09:00:00 +0000", 2026, 9},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.input, err)
			}
			if ts.Year() != tt.year || ts.Hour() != tt.hour {
				t.Errorf("ParseTimestamp(%q) = %v", tt.input, ts)
			}
		})
	}

	for _, bad := range []string{"", "  ", "yesterday", "13/01/2026"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) should fail", bad)
		}
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2026, time.January, 3, 23, 59, 0, 0, time.UTC)
	if got := FormatDate(ts); got != "2026-01-03" {
		t.Errorf("FormatDate = %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(time.Time{}); got != "" {
		t.Errorf("zero time: got %q", got)
	}
	ts := time.Date(2026, time.January, 13, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	if got := FormatTimestamp(ts); got != "2026-01-13T09:00:00Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}
