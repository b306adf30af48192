package engine

import (
	"fmt"
	"strings"
	"time"
)

// Default client settings.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultTimeoutSeconds = 30
	DefaultLanguage       = "German"
)

// Service endpoints.
const (
	EndpointHealth         = "/health/live"
	EndpointNews           = "/api/engine/news"
	EndpointAnalyze        = "/api/engine/analyze"
	EndpointCachedAnalysis = "/api/engine/analyze/"
)

// Error messages surfaced through result values.
const (
	ErrMsgRequestFailed = "HTTP request failed"
	ErrMsgNotCached     = "Analysis not cached"
)

// TransportResult is the outcome of a single HTTP call.
//
// Succeeded holds only when a response was received with a 2xx status.
// Error is set for transport-level failures only; a 4xx/5xx response leaves
// Error empty and is visible through StatusCode and Succeeded.
type TransportResult struct {
	StatusCode int
	Body       []byte
	Succeeded  bool
	Error      string
}

// String returns a short description for logs and CLI output.
func (r TransportResult) String() string {
	switch {
	case r.Error != "":
		return "transport error: " + r.Error
	case r.Succeeded:
		return fmt.Sprintf("HTTP %d", r.StatusCode)
	default:
		return fmt.Sprintf("HTTP %d (not successful)", r.StatusCode)
	}
}

// NewsItem is one news event pushed to the analysis service.
// Ticker, Title and Source are required; the rest are omitted from the
// wire body when empty.
type NewsItem struct {
	Ticker    string `json:"ticker"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Published string `json:"published,omitempty"` // ISO 8601
}

// Validate reports a missing required field.
func (n NewsItem) Validate() error {
	var missing []string
	if n.Ticker == "" {
		missing = append(missing, "ticker")
	}
	if n.Title == "" {
		missing = append(missing, "title")
	}
	if n.Source == "" {
		missing = append(missing, "source")
	}
	if len(missing) > 0 {
		return fmt.Errorf("news item missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// AnalysisMetadata describes how the service produced an analysis.
type AnalysisMetadata struct {
	Provider        string
	Model           string
	DurationSeconds float64
	Retries         int
}

// AnalysisResult is an AI-generated ticker analysis.
type AnalysisResult struct {
	Essay       string
	Summary     string
	Sentiment   string
	KeyFindings []string
	GeneratedAt time.Time
	Metadata    *AnalysisMetadata

	// Missing lists expected response keys that were absent from an
	// otherwise successful body.
	Missing []string

	Succeeded bool
	Error     string
}

// Complete reports whether every expected field was present.
func (a AnalysisResult) Complete() bool {
	return a.Succeeded && len(a.Missing) == 0
}
