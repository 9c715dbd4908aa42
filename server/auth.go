package server

import (
	"context"
	"errors"
	"net/http"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
	"todo-api-v2/auth"
	"todo-api-v2/store"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var req api.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := s.store.InTx(ctx, func(repo *store.Repo) error {
		_, err := auth.Register(ctx, repo, req, auth.RoleRegular)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.Response{OK: true, Message: "User created"})
}

// handleLogin answers 200 whether or not the credentials match; only the ok
// flag tells the client which.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var user api.User
	err := s.store.InTx(ctx, func(repo *store.Repo) error {
		var err error
		user, err = auth.Authenticate(ctx, repo, req.Email, req.Password)
		return err
	})
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusOK, api.Response{OK: false, Message: auth.ErrInvalidCredentials.Message})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.LoginResponse{
		OK:      true,
		Message: "Login success",
		Email:   req.Email,
		Tokens:  tokens,
	})
}

// handleWhoAmI echoes the identity and token the request was authenticated with.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request, caller api.Caller) {
	writeJSON(w, http.StatusOK, api.WhoAmIResponse{User: caller.Username, Auth: caller.Token})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Refresh == "" {
		writeError(w, r, apperr.Validation(map[string][]string{"refresh": {"This field is required."}}))
		return
	}

	access, err := s.tokens.Refresh(req.Refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RefreshResponse{Access: access})
}
