package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ListInstructions returns every instruction row ordered by project, then category.
func (s *Store) ListInstructions(ctx context.Context) ([]InstructionRow, error) {
	rows, err := s.query(ctx, `SELECT id, project, category, content, updated_at FROM project_instructions ORDER BY project, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InstructionRow
	for rows.Next() {
		var (
			in        InstructionRow
			updatedAt string
		)
		if err := rows.Scan(&in.ID, &in.Project, &in.Category, &in.Content, &updatedAt); err != nil {
			return nil, err
		}
		in.UpdatedAt = mustTime(updatedAt)
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetInstruction returns the instruction for project and category ("" for the
// project-wide entry).
func (s *Store) GetInstruction(ctx context.Context, project, category string) (*InstructionRow, error) {
	var (
		in        InstructionRow
		updatedAt string
	)
	err := s.queryRow(ctx, `SELECT id, project, category, content, updated_at FROM project_instructions WHERE project = ? AND category = ?`,
		project, category).Scan(&in.ID, &in.Project, &in.Category, &in.Content, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	in.UpdatedAt = mustTime(updatedAt)
	return &in, nil
}

// UpsertInstruction writes content for (project, category), creating the row
// when it does not exist yet.
func (s *Store) UpsertInstruction(ctx context.Context, in *InstructionRow) error {
	if strings.TrimSpace(in.Project) == "" {
		return fmt.Errorf("instruction project is required")
	}
	in.UpdatedAt = s.now()
	stamp := FormatTime(in.UpdatedAt)

	existing, err := s.GetInstruction(ctx, in.Project, in.Category)
	switch {
	case err == ErrNotFound:
		in.ID = newID()
		_, err = s.exec(ctx, `INSERT INTO project_instructions (id, project, category, content, updated_at) VALUES (?, ?, ?, ?, ?)`,
			in.ID, in.Project, in.Category, in.Content, stamp)
		return err
	case err != nil:
		return err
	}
	in.ID = existing.ID
	_, err = s.exec(ctx, `UPDATE project_instructions SET content = ?, updated_at = ? WHERE id = ?`, in.Content, stamp, in.ID)
	return err
}
