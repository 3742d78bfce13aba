package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const logColumns = `id, created_at, "timestamp", started_at, finished_at, project, title, details, status, tags, links, source`

// LogFilter is the server-side part of a log query.
type LogFilter struct {
	Project      string     // exact match; empty = any
	Status       string     // exact match; empty = any
	Tag          string     // containment in tags; empty = any
	FinishedFrom *time.Time // inclusive lower bound on finished_at
	FinishedTo   *time.Time // inclusive upper bound on finished_at
	Limit        int
	Offset       int
}

// InsertLog stores a log row. ID and CreatedAt are assigned when empty.
func (s *Store) InsertLog(ctx context.Context, l *LogEntry) error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("log title is required")
	}
	if l.ID == "" {
		l.ID = newID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	if l.Status == "" {
		l.Status = LogStatusDone
	}
	tags, err := encodeList(l.Tags)
	if err != nil {
		return err
	}
	links, err := encodeList(l.Links)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		FormatTime(l.CreatedAt),
		nullTime(l.Timestamp),
		nullTime(l.StartedAt),
		nullTime(l.FinishedAt),
		l.Project,
		l.Title,
		nullString(l.Details),
		l.Status,
		tags,
		links,
		nullString(l.Source),
	)
	return err
}

func (s *Store) logWhere(f LogFilter) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}
	if f.Project != "" {
		where += " AND project = ?"
		args = append(args, f.Project)
	}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		where += " AND " + s.tagContains("tags")
		args = append(args, tag)
	}
	if f.FinishedFrom != nil {
		where += " AND finished_at >= ?"
		args = append(args, FormatTime(*f.FinishedFrom))
	}
	if f.FinishedTo != nil {
		where += " AND finished_at <= ?"
		args = append(args, FormatTime(*f.FinishedTo))
	}
	return where, args
}

// QueryLogs returns one page of logs matching f together with the exact
// number of matching rows. Rows still lacking a finish time come first, as
// Postgres sorts NULL in a descending order; then newest finish first. Ties
// fall back to timestamp, newest first.
func (s *Store) QueryLogs(ctx context.Context, f LogFilter) ([]LogEntry, int, error) {
	where, args := s.logWhere(f)

	var total int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	q := `SELECT ` + logColumns + ` FROM logs` + where +
		` ORDER BY (finished_at IS NOT NULL), finished_at DESC, ("timestamp" IS NULL), "timestamp" DESC, created_at DESC, id`
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}
	logs, err := s.collectLogs(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return logs, int(total), nil
}

// RecentLogs returns up to limit logs ordered by effective time, newest first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.collectLogs(ctx, `SELECT `+logColumns+` FROM logs
		ORDER BY COALESCE(finished_at, "timestamp", created_at) DESC, id LIMIT ?`, limit)
}

// GetLog returns a single log by id.
func (s *Store) GetLog(ctx context.Context, id string) (*LogEntry, error) {
	l, err := scanLog(s.queryRow(ctx, `SELECT `+logColumns+` FROM logs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListProjects returns the distinct project names, sorted.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT project FROM logs WHERE project != '' ORDER BY project`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) collectLogs(ctx context.Context, q string, args ...any) ([]LogEntry, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func scanLog(r rowScanner) (*LogEntry, error) {
	var (
		l                            LogEntry
		createdAt                    string
		ts, started, finished        sql.NullString
		details, tags, links, source sql.NullString
	)
	if err := r.Scan(&l.ID, &createdAt, &ts, &started, &finished, &l.Project, &l.Title, &details, &l.Status, &tags, &links, &source); err != nil {
		return nil, err
	}
	l.CreatedAt = mustTime(createdAt)
	l.Timestamp = scanTime(ts)
	l.StartedAt = scanTime(started)
	l.FinishedAt = scanTime(finished)
	l.Details = scanString(details)
	l.Tags = decodeList(tags)
	l.Links = decodeList(links)
	l.Source = scanString(source)
	return &l, nil
}
