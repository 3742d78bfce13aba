package store

import (
	"context"
	"database/sql"
	"time"
)

// LatestStatus returns the most recently updated status row.
func (s *Store) LatestStatus(ctx context.Context) (*AgentStatus, error) {
	var (
		st                   AgentStatus
		note                 sql.NullString
		createdAt, updatedAt string
	)
	err := s.queryRow(ctx, `SELECT id, state, note, created_at, updated_at FROM agent_status ORDER BY updated_at DESC LIMIT 1`).
		Scan(&st.ID, &st.State, &note, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st.Note = scanString(note)
	st.CreatedAt = mustTime(createdAt)
	st.UpdatedAt = mustTime(updatedAt)
	return &st, nil
}

// SetStatus updates the most recently updated status row, or inserts the
// first one. It reports whether an existing row was updated.
func (s *Store) SetStatus(ctx context.Context, state string, note *string, now time.Time) (bool, error) {
	if now.IsZero() {
		now = s.now()
	}
	stamp := FormatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM agent_status ORDER BY updated_at DESC LIMIT 1`)).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO agent_status (id, state, note, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
			newID(), state, nullString(note), stamp, stamp)
		if err != nil {
			return false, &OpError{Op: "insert", Table: "agent_status", Err: err}
		}
		return false, tx.Commit()
	case err != nil:
		return false, &OpError{Op: "select", Table: "agent_status", Err: err}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE agent_status SET state = ?, note = ?, updated_at = ? WHERE id = ?`),
		state, nullString(note), stamp, id); err != nil {
		return false, &OpError{Op: "update", Table: "agent_status", Err: err}
	}
	return true, tx.Commit()
}

// CountStatusRows returns the number of stored status rows.
func (s *Store) CountStatusRows(ctx context.Context) (int, error) {
	var n int64
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM agent_status`).Scan(&n)
	return int(n), err
}
