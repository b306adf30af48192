package mockservice

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/stocknews/internal/engine"
)

// maxFindings caps key_findings in a generated analysis.
const maxFindings = 5

var (
	positiveWords = []string{"beat", "beats", "rise", "rises", "rose", "gain", "gains", "record",
		"upgrade", "upgrades", "strong", "surge", "surges", "raises", "growth", "wins", "higher"}
	negativeWords = []string{"miss", "misses", "fall", "falls", "fell", "drop", "drops", "slide",
		"slides", "recall", "recalls", "downgrade", "cut", "cuts", "weak", "loss", "lawsuit", "lower"}
)

// analysisResponse is the wire shape returned by the analyze endpoints.
type analysisResponse struct {
	Essay       string            `json:"essay"        yaml:"essay"`
	Summary     string            `json:"summary"      yaml:"summary"`
	Sentiment   string            `json:"sentiment"    yaml:"sentiment"`
	KeyFindings []string          `json:"key_findings" yaml:"key_findings"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Metadata    *analysisMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type analysisMetadata struct {
	Provider        string  `json:"provider"         yaml:"provider"`
	Model           string  `json:"model"            yaml:"model"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	Retries         int     `json:"retries"          yaml:"retries"`
}

// analyze builds a deterministic rule-based analysis from the cached news.
func analyze(tickers []string, language string, news []engine.NewsItem, now time.Time) analysisResponse {
	start := time.Now()

	score := 0
	for _, n := range news {
		score += headlineScore(n.Title)
	}
	sentiment := "neutral"
	switch {
	case score > 0:
		sentiment = "positive"
	case score < 0:
		sentiment = "negative"
	}

	findings := make([]string, 0, maxFindings)
	for _, n := range news {
		if len(findings) == maxFindings {
			break
		}
		findings = append(findings, fmt.Sprintf("%s: %s", n.Ticker, n.Title))
	}

	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	joined := strings.Join(sorted, ", ")
	var essay strings.Builder
	fmt.Fprintf(&essay, "Analysis for %s (%s).\n\n", joined, language)
	fmt.Fprintf(&essay, "%d headlines were reviewed. Overall tone is %s.\n", len(news), sentiment)
	for _, f := range findings {
		fmt.Fprintf(&essay, "- %s\n", f)
	}

	return analysisResponse{
		Essay:       essay.String(),
		Summary:     fmt.Sprintf("%s: %s sentiment across %d headlines", joined, sentiment, len(news)),
		Sentiment:   sentiment,
		KeyFindings: findings,
		GeneratedAt: now,
		Metadata: &analysisMetadata{
			Provider:        "mock",
			Model:           "headline-rules",
			DurationSeconds: time.Since(start).Seconds(),
		},
	}
}

// headlineScore counts positive minus negative keywords.
func headlineScore(title string) int {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	score := 0
	for _, w := range words {
		for _, p := range positiveWords {
			if w == p {
				score++
			}
		}
		for _, n := range negativeWords {
			if w == n {
				score--
			}
		}
	}
	return score
}

// newsHash fingerprints the titles so an unchanged news set reuses the
// cached analysis.
func newsHash(news []engine.NewsItem) string {
	if len(news) == 0 {
		return "empty"
	}
	titles := make([]string, len(news))
	for i, n := range news {
		titles[i] = n.Title
	}
	sort.Strings(titles)
	sum := md5.Sum([]byte(strings.Join(titles, "")))
	return hex.EncodeToString(sum[:])
}

// cacheKey is "<sorted tickers joined by ->:<language>".
func cacheKey(tickers []string, language string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return strings.Join(sorted, "-") + ":" + language
}
