// Package mockservice is an in-process stand-in for the remote news
// analysis service.
//
// It speaks the same HTTP contract as the real service: liveness probe,
// news intake, analysis on demand and cached analysis lookup. Analyses are
// produced by simple headline rules instead of a language model, which
// keeps the output deterministic for tests and local development.
package mockservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stocknews/internal/engine"
	"github.com/seenimoa/stocknews/internal/logging"
	"github.com/seenimoa/stocknews/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// News cache bounds: once it grows past maxNews only the newest trimNews
// items are kept.
const (
	maxNews  = 1000
	trimNews = 500

	defaultNewsLimit = 50
	maxNewsLimit     = 200
)

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	Fixtures    *Fixtures
	Logger      *logrus.Entry
	Now         func() time.Time
}

// Server holds the service caches and routes.
type Server struct {
	router chi.Router
	log    *logrus.Entry
	now    func() time.Time
	cors   []string

	mu       sync.RWMutex
	news     []engine.NewsItem
	analyses map[string]analysisResponse
	hashes   map[string]string
}

// New creates a server, preloading any fixtures.
func New(opts Options) *Server {
	s := &Server{
		log:      opts.Logger,
		now:      opts.Now,
		cors:     opts.CORSOrigins,
		analyses: make(map[string]analysisResponse),
		hashes:   make(map[string]string),
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.cors) == 0 {
		s.cors = []string{"*"}
	}
	if opts.Fixtures != nil {
		s.preload(opts.Fixtures)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("mock analysis service listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down mock analysis service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cors,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health/live", s.handleLive)
	r.Get("/health", s.handleHealth)

	r.Route("/api/engine", func(r chi.Router) {
		r.Post("/news", s.handleSubmitNews)
		r.Get("/news", s.handleGetNews)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/analyze/{ticker}", s.handleCachedAnalysis)
		r.Delete("/cache", s.handleClearCache)
	})

	return r
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	news, analyses := len(s.news), len(s.analyses)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"alive":           true,
		"cached_news":     news,
		"cached_analyses": analyses,
	})
}

type newsSubmission struct {
	Items           []engine.NewsItem `json:"items"`
	RequestAnalysis bool              `json:"request_analysis"`
}

type newsResponse struct {
	Processed         int    `json:"processed"`
	AnalysisTriggered bool   `json:"analysis_triggered"`
	Message           string `json:"message"`
}

func (s *Server) handleSubmitNews(w http.ResponseWriter, r *http.Request) {
	var req newsSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	for i := range req.Items {
		if err := req.Items[i].Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("items[%d]: %v", i, err))
			return
		}
		req.Items[i].Ticker = utils.NormalizeTicker(req.Items[i].Ticker)
	}

	s.addNews(req.Items)

	triggered := req.RequestAnalysis && len(req.Items) > 0
	s.log.WithFields(logrus.Fields{
		"items":              len(req.Items),
		"analysis_requested": triggered,
	}).Info("received news items")

	writeJSON(w, http.StatusOK, newsResponse{
		Processed:         len(req.Items),
		AnalysisTriggered: triggered,
		Message:           fmt.Sprintf("Successfully processed %d items", len(req.Items)),
	})
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	ticker := utils.NormalizeTicker(r.URL.Query().Get("ticker"))
	limit := defaultNewsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxNewsLimit {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be between 0 and %d", maxNewsLimit))
			return
		}
		limit = n
	}

	items := s.newsFor(ticker)
	total := len(items)
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

type analysisRequest struct {
	Tickers  []string `json:"tickers"`
	Language string   `json:"language"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	tickers := utils.ParseTickers(req.Tickers...)
	if len(tickers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "tickers must not be empty")
		return
	}
	language := NormalizeLanguage(req.Language)
	key := cacheKey(tickers, language)

	news := s.newsFor(tickers...)
	hash := newsHash(news)

	s.mu.RLock()
	cached, ok := s.analyses[key]
	sameNews := s.hashes[key] == hash
	s.mu.RUnlock()
	if ok && sameNews {
		s.log.WithField("key", key).Info("using cached analysis (content unchanged)")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	if len(news) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No cached news found for tickers: %v", tickers))
		return
	}

	res := analyze(tickers, language, news, s.now())
	s.mu.Lock()
	s.analyses[key] = res
	s.hashes[key] = hash
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"key":       key,
		"headlines": len(news),
		"sentiment": res.Sentiment,
	}).Info("cached analysis")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCachedAnalysis(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if res, ok := s.lookupAnalysis(ticker); ok {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeError(w, http.StatusNotFound, "No cached analysis for: "+chi.URLParam(r, "ticker"))
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.news = nil
	s.analyses = make(map[string]analysisResponse)
	s.hashes = make(map[string]string)
	s.mu.Unlock()

	s.log.Info("all caches cleared")
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// ════════════════════════════════════════════════════════════════════
// Cache helpers
// ════════════════════════════════════════════════════════════════════

func (s *Server) addNews(items []engine.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news = append(s.news, items...)
	if len(s.news) > maxNews {
		s.news = append([]engine.NewsItem(nil), s.news[len(s.news)-trimNews:]...)
	}
}

// newsFor returns cached news for any of tickers, oldest first. No tickers
// means all news.
func (s *Server) newsFor(tickers ...string) []engine.NewsItem {
	want := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if t != "" {
			want[strings.ToUpper(t)] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.NewsItem
	for _, n := range s.news {
		if len(want) == 0 || want[strings.ToUpper(n.Ticker)] {
			out = append(out, n)
		}
	}
	return out
}

// lookupAnalysis tries the exact key first, then any key whose ticker list
// contains the ticker. Several matches resolve to the lexically smallest
// key so the result is stable.
func (s *Server) lookupAnalysis(ticker string) (analysisResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if res, ok := s.analyses[ticker]; ok {
		return res, true
	}
	best := ""
	for key := range s.analyses {
		if keyHasTicker(key, ticker) && (best == "" || key < best) {
			best = key
		}
	}
	if best == "" {
		return analysisResponse{}, false
	}
	return s.analyses[best], true
}

// keyHasTicker reports whether ticker is one of the tickers of a
// "<tickers>:<language>" cache key.
func keyHasTicker(key, ticker string) bool {
	tickers, _, _ := strings.Cut(key, ":")
	if strings.EqualFold(tickers, ticker) {
		return true
	}
	for _, t := range strings.Split(tickers, "-") {
		if strings.EqualFold(t, ticker) {
			return true
		}
	}
	return false
}

func (s *Server) preload(f *Fixtures) {
	items := make([]engine.NewsItem, 0, len(f.News))
	for _, n := range f.News {
		items = append(items, n.item())
	}
	s.addNews(items)

	for _, a := range f.Analyses {
		tickers := utils.ParseTickers(a.Tickers...)
		key := cacheKey(tickers, NormalizeLanguage(a.Language))
		hash := newsHash(s.newsFor(tickers...))

		res := a.analysisResponse
		if res.GeneratedAt.IsZero() {
			res.GeneratedAt = s.now()
		}
		if res.KeyFindings == nil {
			res.KeyFindings = []string{}
		}

		s.mu.Lock()
		s.analyses[key] = res
		s.hashes[key] = hash
		s.mu.Unlock()
	}
}

// ════════════════════════════════════════════════════════════════════
// JSON helpers
// ════════════════════════════════════════════════════════════════════

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

// writeError uses the {"detail": "..."} shape the real service returns.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
