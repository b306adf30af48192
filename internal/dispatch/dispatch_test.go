package dispatch

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/stocknews/internal/logging"
	"github.com/seenimoa/stocknews/internal/store"
)

type stored struct{ ticker, title, date string }

type fakeRecorder struct {
	rows []stored
	err  error
}

func (f *fakeRecorder) Store(_ context.Context, ticker, title, date string) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, stored{ticker, title, date})
	return nil
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 23, 59, 0, 0, time.Local)
}

func TestDispatch(t *testing.T) {
	rec := &fakeRecorder{}
	d := New(rec, WithClock(fixedClock))

	if err := d.Dispatch(context.Background(), " $apple ", "Apple beats estimates"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(rec.rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rec.rows))
	}
	want := stored{"AAPL", "Apple beats estimates", "2024-03-15"}
	if rec.rows[0] != want {
		t.Errorf("got %+v, want %+v", rec.rows[0], want)
	}
}

func TestDispatchEmptyTicker(t *testing.T) {
	rec := &fakeRecorder{}
	err := New(rec).Dispatch(context.Background(), "  $ ", "headline")
	if !errors.Is(err, ErrEmptyTicker) {
		t.Fatalf("got %v, want ErrEmptyTicker", err)
	}
	if len(rec.rows) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestDispatchStoreError(t *testing.T) {
	rec := &fakeRecorder{err: store.ErrClosed}
	err := New(rec).Dispatch(context.Background(), "TSLA", "x")
	if !errors.Is(err, store.ErrClosed) {
		t.Fatalf("got %v, want wrapped ErrClosed", err)
	}
	if !strings.Contains(err.Error(), "TSLA") {
		t.Errorf("error should name the ticker: %v", err)
	}
}

func TestDispatchLogsRouting(t *testing.T) {
	var buf bytes.Buffer
	log := logging.Component(logging.New("info", logging.FormatText, &buf), "dispatch")
	d := New(&fakeRecorder{}, WithClock(fixedClock), WithLogger(log))

	d.Dispatch(context.Background(), "NVDA", "Nvidia record revenue")
	out := buf.String()
	if !strings.Contains(out, "routing news") || !strings.Contains(out, "ticker=NVDA") {
		t.Errorf("unexpected log: %q", out)
	}
}

func TestDispatchIntoSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Options{DSN: filepath.Join(t.TempDir(), "news.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	d := New(s, WithClock(fixedClock))
	if err := d.Dispatch(ctx, "sap", "SAP raises guidance"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, err := s.Recent(ctx, "SAP", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent: %+v, %v", got, err)
	}
	if got[0].Date != "2024-03-15" || got[0].Title != "SAP raises guidance" {
		t.Errorf("got %+v", got[0])
	}
}
