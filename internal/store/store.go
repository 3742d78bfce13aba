// Package store is the row store behind the dashboard and the ingestion
// endpoints. It runs on sqlite locally and on the hosted Postgres in production.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// OpError records which statement of a multi-step write failed.
type OpError struct {
	Op    string // select, insert, update
	Table string
	Err   error
}

func (e *OpError) Error() string { return e.Op + " " + e.Table + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

const timeLayout = "2006-01-02T15:04:05.000000Z"

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the store and applies the schema. For sqlite, source is a
// file path; for postgres it is a connection string.
func Open(driver, source string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		db, err = sql.Open("sqlite", "file:"+source+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DriverPostgres:
		db, err = sql.Open("pgx", source)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if driver == DriverSQLite {
		// One writer keeps sqlite from returning SQLITE_BUSY under concurrent ingest.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach store: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	// Best-effort migration: category column on instructions from the first schema.
	_, _ = db.ExecContext(ctx, `ALTER TABLE project_instructions ADD COLUMN category TEXT NOT NULL DEFAULT ''`)

	return &Store{db: db, driver: driver, now: time.Now}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Store) DB() *sql.DB { return s.db }

// Driver reports the active backend.
func (s *Store) Driver() string { return s.driver }

// SetClock replaces the clock used to stamp created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tagContains returns a predicate testing whether the JSON tag list in col
// contains the bound value.
func (s *Store) tagContains(col string) string {
	if s.driver == DriverPostgres {
		return col + "::jsonb @> jsonb_build_array(?::text)"
	}
	return "EXISTS (SELECT 1 FROM json_each(" + col + ") WHERE json_each.value = ?)"
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func newID() string { return uuid.NewString() }

// FormatTime renders t in the stored fixed-width UTC layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime accepts the stored layout and any RFC 3339 timestamp.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	// Postgres-style "2006-01-02 15:04:05+00" renderings.
	for _, layout := range []string{"2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999Z07", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", v)
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return FormatTime(*t)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := ParseTime(v.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustTime(v string) time.Time {
	t, _ := ParseTime(v)
	return t
}

func scanString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// encodeList stores nil as NULL so "absent" survives a round trip.
func encodeList(list []string) (any, error) {
	if list == nil {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeList(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}
