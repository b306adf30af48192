package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stocknews/internal/engine"
	"github.com/seenimoa/stocknews/internal/logging"
)

// Router records a single ticker/title pair. *dispatch.Dispatcher
// implements it.
type Router interface {
	Dispatch(ctx context.Context, ticker, title string) error
}

// Submitter pushes a batch to the analysis service. *engine.Client
// implements it.
type Submitter interface {
	SubmitNews(ctx context.Context, items []engine.NewsItem, requestAnalysis bool) engine.TransportResult
}

// DefaultBatchSize is the number of items per SubmitNews call.
const DefaultBatchSize = 50

// Report summarizes one ingestion run.
type Report struct {
	RunID         string        `json:"run_id"`
	Sources       int           `json:"sources"`
	FailedSources []string      `json:"failed_sources,omitempty"`
	Fetched       int           `json:"fetched"`
	Stored        int           `json:"stored"`
	StoreErrors   int           `json:"store_errors"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Submitted     int           `json:"submitted"`
	Duration      time.Duration `json:"duration"`
}

// Ingestor runs fetch → store → submit.
type Ingestor struct {
	fetcher   *Fetcher
	router    Router
	submitter Submitter
	batchSize int
	log       *logrus.Entry
}

// NewIngestor wires the pipeline. Either router or submitter may be nil to
// skip that stage.
func NewIngestor(f *Fetcher, router Router, submitter Submitter, batchSize int, log *logrus.Entry) *Ingestor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Ingestor{
		fetcher:   f,
		router:    router,
		submitter: submitter,
		batchSize: batchSize,
		log:       log,
	}
}

// Run fetches every source, records each item locally and submits the
// items to the service in batches. requestAnalysis is set on the final
// batch only, so the service analyzes once per run.
//
// Store failures are counted, not fatal. The returned error reports a
// fetch where every source failed, a rejected batch, or cancellation.
func (in *Ingestor) Run(ctx context.Context, sources []Source, requestAnalysis bool) (Report, error) {
	start := time.Now()
	rep := Report{RunID: uuid.NewString(), Sources: len(sources)}
	log := in.log.WithField("run", rep.RunID)
	log.WithField("sources", len(sources)).Info("ingestion started")

	res, err := in.fetcher.fetchAll(ctx, sources)
	rep.FailedSources = res.failed
	rep.Fetched = len(res.items)
	if err != nil {
		rep.Duration = time.Since(start)
		return rep, fmt.Errorf("ingest %s: %w", rep.RunID, err)
	}

	if in.router != nil {
		for _, it := range res.items {
			if err := in.router.Dispatch(ctx, it.Ticker, it.Title); err != nil {
				rep.StoreErrors++
				log.WithField("ticker", it.Ticker).WithError(err).Warn("store failed")
				continue
			}
			rep.Stored++
		}
	}

	if in.submitter != nil && len(res.items) > 0 {
		for lo := 0; lo < len(res.items); lo += in.batchSize {
			if err := ctx.Err(); err != nil {
				rep.Duration = time.Since(start)
				return rep, err
			}
			end := min(lo+in.batchSize, len(res.items))
			batch := res.items[lo:end]
			last := end == len(res.items)

			resp := in.submitter.SubmitNews(ctx, batch, requestAnalysis && last)
			rep.Batches++
			if !resp.Succeeded {
				rep.FailedBatches++
				log.WithFields(logrus.Fields{
					"batch":  rep.Batches,
					"result": resp.String(),
				}).Warn("batch rejected")
				continue
			}
			rep.Submitted += len(batch)
		}
	}

	rep.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"fetched":   rep.Fetched,
		"stored":    rep.Stored,
		"submitted": rep.Submitted,
		"duration":  rep.Duration.Round(time.Millisecond),
	}).Info("ingestion finished")

	if rep.FailedBatches > 0 {
		return rep, fmt.Errorf("ingest %s: %d of %d batches rejected", rep.RunID, rep.FailedBatches, rep.Batches)
	}
	return rep, nil
}
