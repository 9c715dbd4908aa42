package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
	"todo-api-v2/auth"
	"todo-api-v2/store"
)

var (
	errNoCredentials = apperr.New(apperr.CodeUnauthenticated, "Authentication credentials were not provided.")
	errUserNotFound  = apperr.New(apperr.CodeUnauthenticated, "User not found")
	errNotStaff      = apperr.New(apperr.CodePermissionDenied, "You do not have permission to perform this action.")
)

// callerHandler is a handler that runs for an authenticated caller.
type callerHandler func(w http.ResponseWriter, r *http.Request, caller api.Caller)

// authenticated verifies the Bearer access token, loads its user and hands
// the resulting Caller to next.
func (s *Server) authenticated(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.callerFromRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeError(w, r, err)
			return
		}
		next(w, r, caller)
	}
}

// staffOnly is authenticated plus an is_staff check.
func (s *Server) staffOnly(next callerHandler) http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, caller api.Caller) {
		if !caller.IsStaff {
			writeError(w, r, errNotStaff)
			return
		}
		next(w, r, caller)
	})
}

func (s *Server) callerFromRequest(r *http.Request) (api.Caller, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return api.Caller{}, errNoCredentials
	}

	// The token is in the format "Bearer <token>".
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return api.Caller{}, apperr.New(apperr.CodeUnauthenticated, "Invalid Authorization header format")
	}
	tokenString := parts[1]

	claims, err := s.tokens.Verify(tokenString, auth.TokenAccess)
	if err != nil {
		return api.Caller{}, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	u, err := s.store.Repo().GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.Caller{}, errUserNotFound
		}
		return api.Caller{}, err
	}

	return api.Caller{
		UserID:   u.ID,
		Username: u.Username,
		IsStaff:  u.IsStaff,
		Token:    tokenString,
	}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// logRequests writes one access-log line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

// recoverPanics turns a handler panic into a 500. Any transaction the
// handler held has already been rolled back by store.InTx.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Printf("ERROR: panic serving %s %s: %v", r.Method, r.URL.Path, p)
				writeJSON(w, http.StatusInternalServerError, api.Response{OK: false, Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
