package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l := New(tt.in, FormatText, &bytes.Buffer{})
			if l.GetLevel() != tt.want {
				t.Errorf("level %q: got %v, want %v", tt.in, l.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "JSON", &buf)
	Component(l, "engine").WithField("ticker", "AAPL").Info("routing news")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "engine" || entry["ticker"] != "AAPL" || entry["msg"] != "routing news" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "", &buf)
	l.Debug("hidden")
	l.Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNop(t *testing.T) {
	e := Nop()
	e.Error("dropped")
	if e.Logger.GetLevel() != logrus.PanicLevel {
		t.Errorf("Nop level: got %v", e.Logger.GetLevel())
	}
}
