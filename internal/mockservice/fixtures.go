package mockservice

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/stocknews/internal/engine"
	"github.com/seenimoa/stocknews/pkg/utils"
)

// Fixtures preloads the service caches. Example:
//
//	news:
//	  - ticker: AAPL
//	    title: Apple beats estimates
//	    source: Reuters
//	analyses:
//	  - tickers: [AAPL]
//	    language: english
//	    essay: "..."
//	    summary: "..."
//	    sentiment: positive
//	    key_findings: ["Revenue up"]
type Fixtures struct {
	News     []fixtureNews     `yaml:"news"`
	Analyses []fixtureAnalysis `yaml:"analyses"`
}

type fixtureNews struct {
	Ticker    string `yaml:"ticker"`
	Title     string `yaml:"title"`
	Source    string `yaml:"source"`
	URL       string `yaml:"url"`
	Summary   string `yaml:"summary"`
	Published string `yaml:"published"`
}

type fixtureAnalysis struct {
	Tickers          []string `yaml:"tickers"`
	Language         string   `yaml:"language"`
	analysisResponse `yaml:",inline"`
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes and validates fixture YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, n := range f.News {
		if err := n.item().Validate(); err != nil {
			return nil, fmt.Errorf("fixtures news[%d]: %w", i, err)
		}
	}
	for i, a := range f.Analyses {
		if len(a.Tickers) == 0 {
			return nil, fmt.Errorf("fixtures analyses[%d]: tickers required", i)
		}
	}
	return &f, nil
}

func (n fixtureNews) item() engine.NewsItem {
	return engine.NewsItem{
		Ticker:    utils.NormalizeTicker(n.Ticker),
		Title:     strings.TrimSpace(n.Title),
		Source:    n.Source,
		URL:       n.URL,
		Summary:   n.Summary,
		Published: n.Published,
	}
}
