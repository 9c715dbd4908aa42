// Package server is the JSON HTTP surface: sign-up, login and token refresh,
// owner-scoped todos, and staff-only user listing.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"todo-api-v2/api"
	"todo-api-v2/auth"
	"todo-api-v2/store"
)

// Options tunes a Server.
type Options struct {
	// Prefix is prepended to every route, e.g. "/api".
	Prefix string
	// RequestTimeout bounds the work each handler does against the store.
	RequestTimeout time.Duration
}

type Server struct {
	store   *store.Store
	tokens  *auth.Issuer
	prefix  string
	timeout time.Duration
}

func New(st *store.Store, tokens *auth.Issuer, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 3 * time.Second
	}
	return &Server{
		store:   st,
		tokens:  tokens,
		prefix:  opts.Prefix,
		timeout: opts.RequestTimeout,
	}
}

// Handler returns the routed, logged and panic-safe handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.Response{OK: false, Message: "Not found."})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, api.Response{OK: false, Message: fmt.Sprintf("Method %q not allowed.", r.Method)})
	})

	routes := router
	if s.prefix != "" {
		routes = router.PathPrefix(s.prefix).Subrouter()
	}

	routes.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	routes.HandleFunc("/signup", s.handleSignUp).Methods(http.MethodPost)
	routes.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	routes.HandleFunc("/login", s.authenticated(s.handleWhoAmI)).Methods(http.MethodGet)
	routes.HandleFunc("/token/refresh", s.handleRefresh).Methods(http.MethodPost)

	routes.HandleFunc("/todos", s.authenticated(s.handleListTodos)).Methods(http.MethodGet)
	routes.HandleFunc("/todos", s.authenticated(s.handleCreateTodo)).Methods(http.MethodPost)
	routes.HandleFunc("/todos/{id:[0-9]+}", s.authenticated(s.handleGetTodo)).Methods(http.MethodGet)

	routes.HandleFunc("/users", s.staffOnly(s.handleListUsers)).Methods(http.MethodGet)
	routes.HandleFunc("/users/{id:[0-9]+}", s.staffOnly(s.handleGetUser)).Methods(http.MethodGet)

	return logRequests(recoverPanics(router))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		log.Printf("ERROR: health check: %v", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// ListenAndServe serves h on addr until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
