package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("already exists")

// CreateUser inserts u. Email is lower-cased.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, err := s.UserByEmail(ctx, u.Email); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	u.ID = newID()
	u.CreatedAt = s.now()
	_, err := s.exec(ctx, `INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, FormatTime(u.CreatedAt))
	return err
}

// UserByEmail looks a user up by (case-insensitive) email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var (
		u         User
		createdAt string
	)
	err := s.queryRow(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = mustTime(createdAt)
	return &u, nil
}
