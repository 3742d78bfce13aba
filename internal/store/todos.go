package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TodoFilter narrows ListTodos. Zero values mean no constraint.
type TodoFilter struct {
	Status  string
	DueFrom *time.Time // inclusive
	DueTo   *time.Time // exclusive
	Limit   int
}

const todoColumns = `id, created_at, title, description, status, priority, assignee, due_at, project, tags`

// ListTodos returns todos matching f ordered by due date, undated last.
func (s *Store) ListTodos(ctx context.Context, f TodoFilter) ([]TodoRow, error) {
	q := `SELECT ` + todoColumns + ` FROM todos WHERE 1=1`
	var args []any
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.DueFrom != nil {
		q += " AND due_at >= ?"
		args = append(args, FormatTime(*f.DueFrom))
	}
	if f.DueTo != nil {
		q += " AND due_at < ?"
		args = append(args, FormatTime(*f.DueTo))
	}
	q += " ORDER BY (due_at IS NULL), due_at ASC, created_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TodoRow
	for rows.Next() {
		var (
			t         TodoRow
			createdAt string
			due, tags sql.NullString
		)
		if err := rows.Scan(&t.ID, &createdAt, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Assignee, &due, &t.Project, &tags); err != nil {
			return nil, err
		}
		t.CreatedAt = mustTime(createdAt)
		t.DueAt = scanTime(due)
		t.Tags = decodeList(tags)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTodo inserts t. Status defaults to todo and priority to medium.
func (s *Store) CreateTodo(ctx context.Context, t *TodoRow) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("todo title is required")
	}
	t.ID = newID()
	t.CreatedAt = s.now()
	if t.Status == "" {
		t.Status = LogStatusTodo
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	tags, err := encodeList(t.Tags)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO todos (`+todoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, FormatTime(t.CreatedAt), t.Title, t.Description, t.Status, t.Priority, t.Assignee, nullTime(t.DueAt), t.Project, tags)
	return err
}

// SetTodoStatus changes the status of a todo.
func (s *Store) SetTodoStatus(ctx context.Context, id, status string) error {
	res, err := s.exec(ctx, `UPDATE todos SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// GetTodo returns a todo by id.
func (s *Store) GetTodo(ctx context.Context, id string) (*TodoRow, error) {
	var (
		t         TodoRow
		createdAt string
		due, tags sql.NullString
	)
	err := s.queryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id).
		Scan(&t.ID, &createdAt, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Assignee, &due, &t.Project, &tags)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = mustTime(createdAt)
	t.DueAt = scanTime(due)
	t.Tags = decodeList(tags)
	return &t, nil
}
