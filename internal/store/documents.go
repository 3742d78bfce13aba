package store

import (
	"context"
	"database/sql"
)

const documentColumns = `id, created_at, updated_at, project, title, tags, author, assigned, visibility, content`

// ListDocuments returns up to limit documents, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]DocumentRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*DocumentRow, error) {
	d, err := scanDocument(s.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// CreateDocument inserts d, assigning id and timestamps.
func (s *Store) CreateDocument(ctx context.Context, d *DocumentRow) error {
	now := s.now()
	d.ID = newID()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.Visibility == "" {
		d.Visibility = "private"
	}
	tags, err := encodeList(d.Tags)
	if err != nil {
		return err
	}
	assigned, err := encodeList(d.Assigned)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, FormatTime(d.CreatedAt), FormatTime(d.UpdatedAt), d.Project, d.Title, tags, d.Author, assigned, d.Visibility, d.Content)
	return err
}

// UpdateDocument overwrites the editable fields of d and stamps updated_at.
// Last write wins.
func (s *Store) UpdateDocument(ctx context.Context, d *DocumentRow) error {
	d.UpdatedAt = s.now()
	tags, err := encodeList(d.Tags)
	if err != nil {
		return err
	}
	assigned, err := encodeList(d.Assigned)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE documents SET title = ?, project = ?, author = ?, tags = ?, assigned = ?, visibility = ?, content = ?, updated_at = ? WHERE id = ?`,
		d.Title, d.Project, d.Author, tags, assigned, d.Visibility, d.Content, FormatTime(d.UpdatedAt), d.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanDocument(r rowScanner) (*DocumentRow, error) {
	var (
		d                    DocumentRow
		createdAt, updatedAt string
		tags, assigned       sql.NullString
	)
	if err := r.Scan(&d.ID, &createdAt, &updatedAt, &d.Project, &d.Title, &tags, &d.Author, &assigned, &d.Visibility, &d.Content); err != nil {
		return nil, err
	}
	d.CreatedAt = mustTime(createdAt)
	d.UpdatedAt = mustTime(updatedAt)
	d.Tags = decodeList(tags)
	d.Assigned = decodeList(assigned)
	return &d, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
