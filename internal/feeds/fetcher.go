// Package feeds pulls ticker news from RSS/Atom feeds and hands it to the
// store and the analysis service.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/arbovm/levenshtein"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/seenimoa/stocknews/internal/engine"
	"github.com/seenimoa/stocknews/internal/logging"
	"github.com/seenimoa/stocknews/pkg/utils"
)

const userAgent = "stocknews-feeds/1.0"

// Source is one configured feed. Items from a source without a Ticker are
// attributed by the first cashtag ($AAPL) in their title, or dropped.
type Source struct {
	Name   string
	URL    string
	Ticker string
}

// Fetcher downloads and normalizes feeds.
type Fetcher struct {
	client         *http.Client
	limiter        *rate.Limiter
	dedupeDistance int
	maxPerFeed     int
	log            *logrus.Entry
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRate limits feed requests to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRate(perSecond float64, burst int) FetcherOption {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithDedupeDistance drops titles within d edits of an earlier title for
// the same ticker. Zero drops exact repeats only; negative keeps all.
func WithDedupeDistance(d int) FetcherOption {
	return func(f *Fetcher) { f.dedupeDistance = d }
}

// WithMaxPerFeed caps the items taken from each feed. Zero means no cap.
func WithMaxPerFeed(n int) FetcherOption {
	return func(f *Fetcher) { f.maxPerFeed = n }
}

// WithHTTPClient overrides the client used to download feeds.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(log *logrus.Entry) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

// NewFetcher creates a fetcher: 2 req/s, exact-repeat dedupe, 50 items per
// feed unless overridden.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:         &http.Client{Timeout: 20 * time.Second},
		limiter:        rate.NewLimiter(2, 2),
		dedupeDistance: 0,
		maxPerFeed:     50,
		log:            logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// fetchResult is the outcome of fetching every source once.
type fetchResult struct {
	items  []engine.NewsItem
	failed []string
}

// Fetch downloads all sources concurrently and returns their items in
// source order with near-duplicates removed. Failing sources are logged
// and skipped; an error is returned only when every source failed or ctx
// ended.
func (f *Fetcher) Fetch(ctx context.Context, sources []Source) ([]engine.NewsItem, error) {
	res, err := f.fetchAll(ctx, sources)
	return res.items, err
}

func (f *Fetcher) fetchAll(ctx context.Context, sources []Source) (fetchResult, error) {
	perSource := make([][]engine.NewsItem, len(sources))
	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			items, err := f.fetchOne(gctx, src)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.log.WithField("feed", src.Name).WithError(err).Warn("feed fetch failed")
				mu.Lock()
				failed = append(failed, src.Name)
				mu.Unlock()
				return nil // non-fatal
			}
			perSource[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fetchResult{failed: failed}, err
	}

	var all []engine.NewsItem
	for _, items := range perSource {
		all = append(all, items...)
	}
	res := fetchResult{items: f.dedupe(all), failed: failed}

	if len(sources) > 0 && len(failed) == len(sources) {
		return res, fmt.Errorf("all %d feeds failed", len(sources))
	}
	return res, nil
}

// fetchOne parses a single feed into news items.
func (f *Fetcher) fetchOne(ctx context.Context, src Source) ([]engine.NewsItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	name := src.Name
	if name == "" {
		name = strings.TrimSpace(feed.Title)
	}
	fixed := utils.NormalizeTicker(src.Ticker)

	items := make([]engine.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if f.maxPerFeed > 0 && len(items) >= f.maxPerFeed {
			break
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		ticker := fixed
		if ticker == "" {
			ticker = cashtag(title)
		}
		if ticker == "" {
			f.log.WithField("feed", name).Debugf("no ticker for %q", title)
			continue
		}

		n := engine.NewsItem{
			Ticker:  ticker,
			Title:   title,
			Source:  name,
			URL:     it.Link,
			Summary: cleanHTML(it.Description),
		}
		if it.PublishedParsed != nil {
			n.Published = utils.FormatTimestamp(*it.PublishedParsed)
		}
		items = append(items, n)
	}

	f.log.WithFields(logrus.Fields{
		"feed":  name,
		"items": len(items),
	}).Debug("feed fetched")
	return items, nil
}

// dedupe drops titles that are within dedupeDistance edits of an earlier
// title for the same ticker. Comparison ignores case.
func (f *Fetcher) dedupe(items []engine.NewsItem) []engine.NewsItem {
	if f.dedupeDistance < 0 {
		return items
	}
	seen := make(map[string][]string)
	out := make([]engine.NewsItem, 0, len(items))
	for _, it := range items {
		title := strings.ToLower(it.Title)
		dup := false
		for _, prev := range seen[it.Ticker] {
			if levenshtein.Distance(prev, title) <= f.dedupeDistance {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[it.Ticker] = append(seen[it.Ticker], title)
		out = append(out, it)
	}
	return out
}

var cashtagRe = regexp.MustCompile(`\$([A-Za-z]{1,6}(?:\.[A-Za-z]{1,3})?)\b`)

// cashtag returns the first $TICKER mentioned in s, normalized.
func cashtag(s string) string {
	m := cashtagRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return utils.NormalizeTicker(m[1])
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
