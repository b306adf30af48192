// stocknews is a news ingestion and AI analysis client.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/stocknews/internal/config"
	"github.com/seenimoa/stocknews/internal/dispatch"
	"github.com/seenimoa/stocknews/internal/engine"
	"github.com/seenimoa/stocknews/internal/feeds"
	"github.com/seenimoa/stocknews/internal/logging"
	"github.com/seenimoa/stocknews/internal/mockservice"
	"github.com/seenimoa/stocknews/internal/store"
	"github.com/seenimoa/stocknews/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	engine.Init()
	err := rootCmd.ExecuteContext(ctx)
	engine.Shutdown()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stocknews",
	Short: "Push ticker news to the analysis service and fetch AI analysis",
	Long: `stocknews feeds ticker news into a remote analysis service and
retrieves the AI-generated essays, summaries and key findings it produces.
Every ingested headline is also recorded in a local database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		log = logging.New(level, cfg.Logging.Format, os.Stderr)

		if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
			cfg.Service.BaseURL = baseURL
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("base-url", "", "analysis service address override")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cachedCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(mockServeCmd)
	rootCmd.AddCommand(statusCmd)
}

// newClient builds a service client from the loaded config.
func newClient() *engine.Client {
	return engine.NewClient(cfg.Service.BaseURL,
		engine.WithTimeout(cfg.Service.TimeoutSeconds),
		engine.WithLanguage(cfg.Service.Language),
		engine.WithFollowRedirects(cfg.Service.FollowRedirects),
		engine.WithLogger(logging.Component(log, "engine")),
	)
}

// openStore opens the configured news database.
func openStore(ctx context.Context) (*store.SQLStore, error) {
	s, err := store.Open(ctx, store.Options{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stocknews %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Health Command ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the analysis service is alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if !c.CheckHealth(cmd.Context()) {
			if msg := c.LastError(); msg != "" {
				return fmt.Errorf("service at %s is not alive: %s", c.BaseURL(), msg)
			}
			return fmt.Errorf("service at %s is not alive", c.BaseURL())
		}
		fmt.Printf("✅ %s is alive\n", c.BaseURL())
		return nil
	},
}

// --- Submit Command ---

var submitCmd = &cobra.Command{
	Use:   "submit [ticker] [title]",
	Short: "Submit a single news item to the analysis service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		url, _ := cmd.Flags().GetString("url")
		summary, _ := cmd.Flags().GetString("summary")
		analyze, _ := cmd.Flags().GetBool("analyze")

		item := engine.NewsItem{
			Ticker:  utils.NormalizeTicker(args[0]),
			Title:   strings.TrimSpace(args[1]),
			Source:  source,
			URL:     url,
			Summary: summary,
		}
		if err := item.Validate(); err != nil {
			return err
		}

		res := newClient().SubmitNews(cmd.Context(), []engine.NewsItem{item}, analyze)
		if !res.Succeeded {
			return fmt.Errorf("submit failed: %s", res)
		}
		fmt.Printf("📨 Submitted %s: %s (%s)\n", item.Ticker, item.Title, res)
		return nil
	},
}

func init() {
	submitCmd.Flags().String("source", "cli", "news source name")
	submitCmd.Flags().String("url", "", "article URL")
	submitCmd.Flags().String("summary", "", "article summary")
	submitCmd.Flags().Bool("analyze", false, "ask the service to analyze after intake")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [tickers...]",
	Short: "Request an AI analysis for one or more tickers",
	Long: `Request an AI analysis for one or more tickers.

Examples:
  stocknews analyze AAPL
  stocknews analyze AAPL,TSLA --language English`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers := utils.ParseTickers(args...)
		if len(tickers) == 0 {
			return fmt.Errorf("no tickers given")
		}
		language, _ := cmd.Flags().GetString("language")

		fmt.Printf("🔍 Analyzing %s\n", strings.Join(tickers, ", "))
		res := newClient().RequestAnalysis(cmd.Context(), tickers, language)
		if !res.Succeeded {
			return fmt.Errorf("analysis failed: %s", res.Error)
		}
		printAnalysis(res)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("language", "", "analysis language (default from config)")
}

// --- Cached Command ---

var cachedCmd = &cobra.Command{
	Use:   "cached [ticker]",
	Short: "Show the cached analysis for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])
		res := newClient().GetCachedAnalysis(cmd.Context(), ticker)
		if !res.Succeeded {
			return fmt.Errorf("%s: %s", ticker, res.Error)
		}
		printAnalysis(res)
		return nil
	},
}

func printAnalysis(res engine.AnalysisResult) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Sentiment: %s\n", res.Sentiment)
	fmt.Printf("  Summary:   %s\n", res.Summary)
	if !res.GeneratedAt.IsZero() {
		fmt.Printf("  Generated: %s\n", res.GeneratedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if md := res.Metadata; md != nil {
		fmt.Printf("  Model:     %s/%s (%.1fs, %d retries)\n", md.Provider, md.Model, md.DurationSeconds, md.Retries)
	}
	fmt.Println("═══════════════════════════════════════")
	if len(res.KeyFindings) > 0 {
		fmt.Println("Key findings:")
		for _, f := range res.KeyFindings {
			fmt.Printf("  • %s\n", f)
		}
		fmt.Println()
	}
	fmt.Println(res.Essay)
	if len(res.Missing) > 0 {
		fmt.Printf("\n⚠️  Response lacked: %s\n", strings.Join(res.Missing, ", "))
	}
}

// --- Dispatch Command ---

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [ticker] [title]",
	Short: "Record a headline in the local news database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		d := dispatch.New(s, dispatch.WithLogger(logging.Component(log, "dispatch")))
		if err := d.Dispatch(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("💾 Stored %s: %s\n", utils.NormalizeTicker(args[0]), args[1])
		return nil
	},
}

// --- History Command ---

var historyCmd = &cobra.Command{
	Use:   "history [ticker]",
	Short: "List recently stored headlines",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		ticker := ""
		if len(args) == 1 {
			ticker = utils.NormalizeTicker(args[0])
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		records, err := s.Recent(cmd.Context(), ticker, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No stored headlines.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%6d  %s  %-8s %s\n", r.ID, r.Date, r.Ticker, r.Title)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum rows to show")
}

// --- Ingest Command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch configured feeds, store headlines and submit them for analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		analyze, _ := cmd.Flags().GetBool("analyze")
		if len(cfg.Ingest.Feeds) == 0 {
			return fmt.Errorf("no feeds configured (ingest.feeds)")
		}

		sources := make([]feeds.Source, 0, len(cfg.Ingest.Feeds))
		for _, f := range cfg.Ingest.Feeds {
			sources = append(sources, feeds.Source{Name: f.Name, URL: f.URL, Ticker: f.Ticker})
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		fetcher := feeds.NewFetcher(
			feeds.WithRate(cfg.Ingest.RatePerSecond, cfg.Ingest.Burst),
			feeds.WithDedupeDistance(cfg.Ingest.DedupeDistance),
			feeds.WithMaxPerFeed(cfg.Ingest.MaxPerFeed),
			feeds.WithFetchLogger(logging.Component(log, "feeds")),
		)
		router := dispatch.New(s, dispatch.WithLogger(logging.Component(log, "dispatch")))
		in := feeds.NewIngestor(fetcher, router, newClient(), cfg.Ingest.BatchSize, logging.Component(log, "ingest"))

		rep, err := in.Run(cmd.Context(), sources, analyze)
		fmt.Printf("📰 Run %s: %d fetched, %d stored, %d/%d submitted in %d batches (%s)\n",
			rep.RunID, rep.Fetched, rep.Stored, rep.Submitted, rep.Fetched, rep.Batches, rep.Duration.Round(time.Millisecond))
		if len(rep.FailedSources) > 0 {
			fmt.Printf("   ⚠️  failed feeds: %s\n", strings.Join(rep.FailedSources, ", "))
		}
		return err
	},
}

func init() {
	ingestCmd.Flags().Bool("analyze", false, "request analysis after the final batch")
}

// --- Mock Serve Command ---

var mockServeCmd = &cobra.Command{
	Use:   "mock-serve",
	Short: "Run a local stand-in for the analysis service",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Mock.Addr
		}
		fixturesPath, _ := cmd.Flags().GetString("fixtures")
		if fixturesPath == "" {
			fixturesPath = cfg.Mock.Fixtures
		}

		var fx *mockservice.Fixtures
		if fixturesPath != "" {
			var err error
			if fx, err = mockservice.LoadFixtures(fixturesPath); err != nil {
				return err
			}
		}

		srv := mockservice.New(mockservice.Options{
			CORSOrigins: cfg.Mock.CORSOrigins,
			Fixtures:    fx,
			Logger:      logging.Component(log, "mockservice"),
		})
		fmt.Printf("🌐 Mock analysis service on http://%s\n", addr)
		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	mockServeCmd.Flags().String("addr", "", "listen address (default from config)")
	mockServeCmd.Flags().String("fixtures", "", "YAML fixtures to preload")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		alive := "❌ unreachable"
		if c.CheckHealth(cmd.Context()) {
			alive = "✅ alive"
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  stocknews System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Service:       %s %s\n", c.BaseURL(), alive)
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Timeout:       %s\n", c.Timeout())
		fmt.Printf("    Language:      %s\n", c.Language())
		fmt.Printf("    Redirects:     %t\n", cfg.Service.FollowRedirects)
		fmt.Printf("    Store:         %s (%s)\n", cfg.Store.Driver, config.MaskDSN(cfg.Store.DSN))
		fmt.Printf("    Feeds:         %d\n", len(cfg.Ingest.Feeds))
		fmt.Println()

		// Secrets status
		fmt.Println("  Secrets:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
