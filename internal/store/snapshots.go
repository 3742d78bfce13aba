package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertCronSnapshot appends a cron snapshot.
func (s *Store) InsertCronSnapshot(ctx context.Context, snap *CronSnapshot) error {
	if !json.Valid(snap.Payload) {
		return fmt.Errorf("cron payload is not valid JSON")
	}
	if snap.ID == "" {
		snap.ID = newID()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `INSERT INTO cron_snapshot (id, created_at, payload, source) VALUES (?, ?, ?, ?)`,
		snap.ID, FormatTime(snap.CreatedAt), string(snap.Payload), snap.Source)
	return err
}

// LatestCronSnapshot returns the newest cron snapshot.
func (s *Store) LatestCronSnapshot(ctx context.Context) (*CronSnapshot, error) {
	snaps, err := s.ListCronSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	return &snaps[0], nil
}

// ListCronSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListCronSnapshots(ctx context.Context, limit int) ([]CronSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx, `SELECT id, created_at, payload, source FROM cron_snapshot ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CronSnapshot
	for rows.Next() {
		var (
			snap      CronSnapshot
			createdAt string
			payload   string
		)
		if err := rows.Scan(&snap.ID, &createdAt, &payload, &snap.Source); err != nil {
			return nil, err
		}
		snap.CreatedAt = mustTime(createdAt)
		snap.Payload = json.RawMessage(payload)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// InsertMemorySnapshot appends a memory snapshot.
func (s *Store) InsertMemorySnapshot(ctx context.Context, snap *MemorySnapshot) error {
	if snap.ID == "" {
		snap.ID = newID()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `INSERT INTO memory_snapshot (id, created_at, content, source) VALUES (?, ?, ?, ?)`,
		snap.ID, FormatTime(snap.CreatedAt), snap.Content, snap.Source)
	return err
}

// LatestMemorySnapshot returns the newest memory snapshot.
func (s *Store) LatestMemorySnapshot(ctx context.Context) (*MemorySnapshot, error) {
	var (
		snap      MemorySnapshot
		createdAt string
	)
	err := s.queryRow(ctx, `SELECT id, created_at, content, source FROM memory_snapshot ORDER BY created_at DESC LIMIT 1`).
		Scan(&snap.ID, &createdAt, &snap.Content, &snap.Source)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.CreatedAt = mustTime(createdAt)
	return &snap, nil
}
