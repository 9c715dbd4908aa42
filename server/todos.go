package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
	"todo-api-v2/store"
)

// TodoReader is the read-own capability: only the caller's todos.
type TodoReader interface {
	GetUserTodos(ctx context.Context, userID int64) ([]api.Todo, error)
	GetUserTodo(ctx context.Context, userID, id int64) (api.Todo, error)
}

// TodoWriter is the write-own capability.
type TodoWriter interface {
	CreateUserTodo(ctx context.Context, userID int64, title, body string) (api.Todo, error)
}

var (
	errOnlyOneResource = apperr.New(apperr.CodeValidation, "Only one resource")
	errExtraTodoFields = apperr.New(apperr.CodeValidation, `Only "title" and "body" fields are allowed`)
	errNotAnObject     = apperr.New(apperr.CodeValidation, "Invalid data. Expected a dictionary")
)

var allowedTodoFields = map[string]int{
	"title": api.MaxTitleLen,
	"body":  api.MaxBodyLen,
}

// todoInput is the validated field set of a create request.
type todoInput struct {
	Title string
	Body  string
}

// parseTodoInput accepts a single JSON object whose keys are a subset of
// {title, body}, each a string within its length limit. Missing fields are
// empty.
func parseTodoInput(payload any) (todoInput, error) {
	if _, ok := payload.([]any); ok {
		return todoInput{}, errOnlyOneResource
	}
	fields, ok := payload.(map[string]any)
	if !ok {
		return todoInput{}, errNotAnObject
	}

	for key := range fields {
		if _, ok := allowedTodoFields[key]; !ok {
			return todoInput{}, errExtraTodoFields
		}
	}

	values := map[string]string{}
	errs := apperr.FieldErrors{}
	for key, limit := range allowedTodoFields {
		raw, present := fields[key]
		if !present || raw == nil {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			errs.Add(key, "Not a valid string.")
			continue
		}
		if utf8.RuneCountInString(value) > limit {
			errs.Add(key, fmt.Sprintf("Ensure this field has no more than %d characters.", limit))
			continue
		}
		values[key] = value
	}
	if err := errs.Err(); err != nil {
		return todoInput{}, err
	}

	return todoInput{Title: values["title"], Body: values["body"]}, nil
}

func listTodos(ctx context.Context, todos TodoReader, caller api.Caller) ([]api.Todo, error) {
	return todos.GetUserTodos(ctx, caller.UserID)
}

func retrieveTodo(ctx context.Context, todos TodoReader, caller api.Caller, id int64) (api.Todo, error) {
	return todos.GetUserTodo(ctx, caller.UserID, id)
}

func createTodo(ctx context.Context, todos TodoWriter, caller api.Caller, in todoInput) (api.Todo, error) {
	return todos.CreateUserTodo(ctx, caller.UserID, in.Title, in.Body)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request, caller api.Caller) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var todos []api.Todo
	err := s.store.InTx(ctx, func(repo *store.Repo) error {
		var err error
		todos, err = listTodos(ctx, repo, caller)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request, caller api.Caller) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, store.ErrNotFound)
		return
	}

	var todo api.Todo
	err = s.store.InTx(ctx, func(repo *store.Repo) error {
		var err error
		todo, err = retrieveTodo(ctx, repo, caller, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

// handleCreateTodo acknowledges creation without echoing the new record.
func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request, caller api.Caller) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var payload any
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := parseTodoInput(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = s.store.InTx(ctx, func(repo *store.Repo) error {
		_, err := createTodo(ctx, repo, caller, in)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.Response{OK: true, Message: "Todo created for " + caller.Username})
}
