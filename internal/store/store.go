// Package store persists ingested news records in a SQL database.
//
// SQLite (pure Go, no cgo) is the default backend; PostgreSQL is selected
// with Driver "postgres". Both share one schema, the news_impact table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultDSN is the SQLite file used when no DSN is given.
	DefaultDSN = "stock_news.db"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("store: unknown driver")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Recorder is the narrow write surface consumed by the dispatch layer.
type Recorder interface {
	Store(ctx context.Context, ticker, title, date string) error
}

// Record is one stored news row.
type Record struct {
	ID        int64    `json:"id"`
	Ticker    string   `json:"ticker"`
	Title     string   `json:"title"`
	Category  string   `json:"category,omitempty"`
	Relevance *float64 `json:"relevance,omitempty"`
	Date      string   `json:"date"`
}

// Options selects the backend.
type Options struct {
	Driver string // "sqlite" (default) or "postgres"
	DSN    string // file path for sqlite, connection string for postgres
}

// dialect captures the few statements that differ between backends.
type dialect struct {
	schema string
	insert string
	recent string
	all    string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		schema: `CREATE TABLE IF NOT EXISTS news_impact (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			title TEXT,
			category TEXT,
			relevance REAL,
			date TEXT
		)`,
		insert: `INSERT INTO news_impact (ticker, title, date) VALUES (?, ?, ?)`,
		recent: `SELECT id, ticker, title, category, relevance, date FROM news_impact
			WHERE ticker = ? ORDER BY id DESC LIMIT ?`,
		all: `SELECT id, ticker, title, category, relevance, date FROM news_impact
			ORDER BY id DESC LIMIT ?`,
	},
	DriverPostgres: {
		schema: `CREATE TABLE IF NOT EXISTS news_impact (
			id SERIAL PRIMARY KEY,
			ticker TEXT NOT NULL,
			title TEXT,
			category TEXT,
			relevance DOUBLE PRECISION,
			date TEXT
		)`,
		insert: `INSERT INTO news_impact (ticker, title, date) VALUES ($1, $2, $3)`,
		recent: `SELECT id, ticker, title, category, relevance, date FROM news_impact
			WHERE ticker = $1 ORDER BY id DESC LIMIT $2`,
		all: `SELECT id, ticker, title, category, relevance, date FROM news_impact
			ORDER BY id DESC LIMIT $1`,
	},
}

// SQLStore is a Recorder backed by database/sql.
type SQLStore struct {
	driver  string
	dialect dialect

	mu sync.RWMutex
	db *sql.DB
}

// Open connects to the database and creates the news_impact table if it
// does not exist yet.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	dsn := opts.DSN
	if dsn == "" {
		if driver != DriverSQLite {
			return nil, fmt.Errorf("store: %s requires a DSN", driver)
		}
		dsn = DefaultDSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create news_impact table: %w", err)
	}

	return &SQLStore{driver: driver, dialect: d, db: db}, nil
}

// Driver returns the backend name.
func (s *SQLStore) Driver() string { return s.driver }

// Store inserts one news record.
func (s *SQLStore) Store(ctx context.Context, ticker, title, date string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.insert, ticker, title, date); err != nil {
		return fmt.Errorf("insert news record for %s: %w", ticker, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty ticker matches
// every ticker; a non-positive limit defaults to 20.
func (s *SQLStore) Recent(ctx context.Context, ticker string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	var (
		rows *sql.Rows
		err  error
	)
	if ticker == "" {
		rows, err = s.db.QueryContext(ctx, s.dialect.all, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.dialect.recent, ticker, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query news records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			title     sql.NullString
			category  sql.NullString
			relevance sql.NullFloat64
			date      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &title, &category, &relevance, &date); err != nil {
			return nil, fmt.Errorf("scan news record: %w", err)
		}
		r.Title = title.String
		r.Category = category.String
		r.Date = date.String
		if relevance.Valid {
			v := relevance.Float64
			r.Relevance = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news records: %w", err)
	}
	return out, nil
}

// Close releases the database. Calling it more than once is a no-op.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
