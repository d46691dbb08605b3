package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opsboard/opsboard/pkg/models"
)

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	var user models.User
	err := s.DB.GetContext(ctx, &user, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING *`,
		name, email, passwordHash)
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicate
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.DB.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return user, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.DB.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (s *Store) CreateSession(ctx context.Context, userID int64) (models.Session, error) {
	var session models.Session
	err := s.DB.GetContext(ctx, &session, `
		INSERT INTO sessions (id, user_id, valid)
		VALUES ($1, $2, true)
		RETURNING *`,
		uuid.New(), userID)
	if err != nil {
		return models.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// ValidSession returns the session only if it exists and is still
// honored.
func (s *Store) ValidSession(ctx context.Context, id uuid.UUID) (models.Session, error) {
	var session models.Session
	err := s.DB.GetContext(ctx, &session, `SELECT * FROM sessions WHERE id = $1 AND valid`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// InvalidateSession marks the session invalid. Invalidating an already
// invalid or missing session is not an error.
func (s *Store) InvalidateSession(ctx context.Context, id uuid.UUID) error {
	if _, err := s.DB.ExecContext(ctx, `UPDATE sessions SET valid = false WHERE id = $1`, id); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}
