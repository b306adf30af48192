// Package dispatch routes incoming news to the persistence sink.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stocknews/internal/logging"
	"github.com/seenimoa/stocknews/internal/store"
	"github.com/seenimoa/stocknews/pkg/utils"
)

// ErrEmptyTicker is returned when the ticker is blank after normalization.
var ErrEmptyTicker = errors.New("dispatch: empty ticker")

// Dispatcher stamps news with today's date and hands it to a Recorder.
type Dispatcher struct {
	rec store.Recorder
	now func() time.Time
	log *logrus.Entry
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(d *Dispatcher) { d.log = log }
}

// New creates a dispatcher writing to rec.
func New(rec store.Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{rec: rec, now: time.Now, log: logging.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch records a ticker/title pair under the current local date.
func (d *Dispatcher) Dispatch(ctx context.Context, ticker, title string) error {
	sym := utils.NormalizeTicker(ticker)
	if sym == "" {
		return ErrEmptyTicker
	}
	date := utils.FormatDate(d.now())

	d.log.WithFields(logrus.Fields{
		"ticker": sym,
		"date":   date,
	}).Infof("routing news: %s", title)

	if err := d.rec.Store(ctx, sym, title, date); err != nil {
		return fmt.Errorf("dispatch %s: %w", sym, err)
	}
	return nil
}
