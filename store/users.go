package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
)

const userColumns = "id, email, username, password_hash, created_at, is_staff, is_superuser"

// ErrEmailTaken is returned when the users.email UNIQUE constraint rejects
// an insert.
var ErrEmailTaken = &apperr.Error{
	Code:    apperr.CodeValidation,
	Message: "Email has already been used",
	Fields:  map[string][]string{"email": {"Email has already been used"}},
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (api.User, error) {
	var u api.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.IsStaff, &u.IsSuperuser)
	return u, err
}

// CreateUser inserts u and returns it with its id. CreatedAt defaults to now.
func (r *Repo) CreateUser(ctx context.Context, u api.User) (api.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO users (email, username, password_hash, created_at, is_staff, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.Email, u.Username, u.PasswordHash, u.CreatedAt, u.IsStaff, u.IsSuperuser,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return api.User{}, ErrEmailTaken
		}
		return api.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// EmailExists reports whether a user already holds email.
func (r *Repo) EmailExists(ctx context.Context, email string) (bool, error) {
	var found int
	err := r.q.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email = $1", email).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// GetUserByEmail returns the user registered under email.
func (r *Repo) GetUserByEmail(ctx context.Context, email string) (api.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, ErrNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUser returns the user with id.
func (r *Repo) GetUser(ctx context.Context, id int64) (api.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, ErrNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every user ordered by id.
func (r *Repo) ListUsers(ctx context.Context) ([]api.User, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []api.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
