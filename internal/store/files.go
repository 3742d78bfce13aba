package store

import (
	"context"
	"database/sql"
)

const fileColumns = `id, created_at, updated_at, project, title, type, tags, content, author, folder_id, source`

// ListFiles returns up to limit files, most recently updated first.
func (s *Store) ListFiles(ctx context.Context, limit int) ([]FileRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.query(ctx, `SELECT `+fileColumns+` FROM files ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// GetFile returns a file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*FileRow, error) {
	f, err := scanFile(s.queryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

// CreateFile inserts f, assigning id and timestamps.
func (s *Store) CreateFile(ctx context.Context, f *FileRow) error {
	now := s.now()
	f.ID = newID()
	f.CreatedAt, f.UpdatedAt = now, now
	tags, err := encodeList(f.Tags)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, FormatTime(f.CreatedAt), FormatTime(f.UpdatedAt), f.Project, f.Title, f.Type, tags, f.Content, f.Author, nullString(f.FolderID), f.Source)
	return err
}

// UpdateFile overwrites the editable fields of f and stamps updated_at.
func (s *Store) UpdateFile(ctx context.Context, f *FileRow) error {
	f.UpdatedAt = s.now()
	tags, err := encodeList(f.Tags)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE files SET title = ?, project = ?, type = ?, tags = ?, content = ?, author = ?, folder_id = ?, updated_at = ? WHERE id = ?`,
		f.Title, f.Project, f.Type, tags, f.Content, f.Author, nullString(f.FolderID), FormatTime(f.UpdatedAt), f.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteFile removes a file.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListFolders returns all folders ordered by name.
func (s *Store) ListFolders(ctx context.Context) ([]FolderRow, error) {
	rows, err := s.query(ctx, `SELECT id, created_at, name, project, parent_id FROM folders ORDER BY name ASC LIMIT 200`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FolderRow
	for rows.Next() {
		var (
			f         FolderRow
			createdAt string
			parent    sql.NullString
		)
		if err := rows.Scan(&f.ID, &createdAt, &f.Name, &f.Project, &parent); err != nil {
			return nil, err
		}
		f.CreatedAt = mustTime(createdAt)
		f.ParentID = scanString(parent)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateFolder inserts a folder.
func (s *Store) CreateFolder(ctx context.Context, f *FolderRow) error {
	f.ID = newID()
	f.CreatedAt = s.now()
	_, err := s.exec(ctx, `INSERT INTO folders (id, created_at, name, project, parent_id) VALUES (?, ?, ?, ?, ?)`,
		f.ID, FormatTime(f.CreatedAt), f.Name, f.Project, nullString(f.ParentID))
	return err
}

func scanFile(r rowScanner) (*FileRow, error) {
	var (
		f                    FileRow
		createdAt, updatedAt string
		tags, folder         sql.NullString
	)
	if err := r.Scan(&f.ID, &createdAt, &updatedAt, &f.Project, &f.Title, &f.Type, &tags, &f.Content, &f.Author, &folder, &f.Source); err != nil {
		return nil, err
	}
	f.CreatedAt = mustTime(createdAt)
	f.UpdatedAt = mustTime(updatedAt)
	f.Tags = decodeList(tags)
	f.FolderID = scanString(folder)
	return &f, nil
}
