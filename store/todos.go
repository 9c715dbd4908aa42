package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todo-api-v2/api"
)

const todoColumns = "id, title, body, status, created_at, updated_at, done_at, deleted_at, user_id"

func scanTodo(row rowScanner) (api.Todo, error) {
	var t api.Todo
	var doneAt, deletedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Title, &t.Body, &t.Status, &t.CreatedAt, &t.UpdatedAt, &doneAt, &deletedAt, &t.UserID); err != nil {
		return api.Todo{}, err
	}
	if doneAt.Valid {
		t.DoneAt = &doneAt.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return t, nil
}

// GetUserTodos returns every todo owned by userID, oldest first.
func (r *Repo) GetUserTodos(ctx context.Context, userID int64) ([]api.Todo, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+todoColumns+" FROM todo WHERE user_id = $1 ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := []api.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

// GetUserTodo returns todo id when userID owns it. Someone else's todo is
// reported as ErrNotFound, same as a missing one.
func (r *Repo) GetUserTodo(ctx context.Context, userID, id int64) (api.Todo, error) {
	t, err := scanTodo(r.q.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todo WHERE id = $1 AND user_id = $2",
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return api.Todo{}, ErrNotFound
	}
	if err != nil {
		return api.Todo{}, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// CreateUserTodo inserts a todo owned by userID with the default status.
func (r *Repo) CreateUserTodo(ctx context.Context, userID int64, title, body string) (api.Todo, error) {
	now := time.Now().UTC()
	t := api.Todo{
		Title:     title,
		Body:      body,
		Status:    api.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
	}
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO todo (title, body, status, created_at, updated_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.Title, t.Body, t.Status, t.CreatedAt, t.UpdatedAt, t.UserID,
	).Scan(&t.ID)
	if err != nil {
		return api.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return t, nil
}
