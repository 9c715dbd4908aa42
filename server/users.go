package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"todo-api-v2/api"
	"todo-api-v2/store"
)

// UserReader is the admin-read capability over every account.
type UserReader interface {
	ListUsers(ctx context.Context) ([]api.User, error)
	GetUser(ctx context.Context, id int64) (api.User, error)
}

func listUsers(ctx context.Context, users UserReader) ([]api.User, error) {
	return users.ListUsers(ctx)
}

func retrieveUser(ctx context.Context, users UserReader, id int64) (api.User, error) {
	return users.GetUser(ctx, id)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ api.Caller) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var users []api.User
	err := s.store.InTx(ctx, func(repo *store.Repo) error {
		var err error
		users, err = listUsers(ctx, repo)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, _ api.Caller) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, store.ErrNotFound)
		return
	}

	var user api.User
	err = s.store.InTx(ctx, func(repo *store.Repo) error {
		var err error
		user, err = retrieveUser(ctx, repo, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
