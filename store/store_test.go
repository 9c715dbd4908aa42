package store

import (
	"context"
	"errors"
	"testing"

	"todo-api-v2/api"
	"todo-api-v2/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), config.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("FATAL: Could not open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email string) api.User {
	t.Helper()
	u, err := s.Repo().CreateUser(context.Background(), api.User{
		Email:        email,
		Username:     "user-" + email,
		PasswordHash: "fake-hash",
	})
	if err != nil {
		t.Fatalf("FATAL: Could not insert test user: %v", err)
	}
	return u
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestOpenRejectsBadInput(t *testing.T) {
	if _, err := Open(context.Background(), config.DriverSQLite, ""); err == nil {
		t.Error("expected error for empty source")
	}
	if _, err := Open(context.Background(), "mysql", "whatever"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSqliteDSN(t *testing.T) {
	testCases := []struct{ in, want string }{
		{":memory:", ":memory:?_foreign_keys=on"},
		{"todo.db?cache=shared", "todo.db?cache=shared&_foreign_keys=on"},
		{"todo.db?_fk=1", "todo.db?_fk=1"},
	}
	for _, tc := range testCases {
		if got := sqliteDSN(tc.in); got != tc.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	applied, err := s.Migrate(context.Background())
	if err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing to apply on second run, got %v", applied)
	}
	if n := countRows(t, s, migrationTable); n == 0 {
		t.Errorf("expected migrations to be recorded")
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	got := ExtractUpMigration(content)
	if got != "\nCREATE TABLE a (id INT);\n" {
		t.Errorf("unexpected up section %q", got)
	}
	if ExtractUpMigration("SELECT 1;") != "SELECT 1;" {
		t.Errorf("expected content without markers to pass through")
	}
}

func TestCreateUserUniqueEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "a@x.com")

	_, err := s.Repo().CreateUser(ctx, api.User{Email: "a@x.com", Username: "dup", PasswordHash: "h"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if n := countRows(t, s, "users"); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}

	exists, err := s.Repo().EmailExists(ctx, "a@x.com")
	if err != nil || !exists {
		t.Errorf("expected email to exist, got %t, %v", exists, err)
	}
	exists, err = s.Repo().EmailExists(ctx, "b@x.com")
	if err != nil || exists {
		t.Errorf("expected email to be free, got %t, %v", exists, err)
	}
}

func TestGetUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := seedUser(t, s, "a@x.com")

	byEmail, err := s.Repo().GetUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != created.ID || byEmail.PasswordHash != "fake-hash" {
		t.Errorf("unexpected user %+v", byEmail)
	}
	if byEmail.CreatedAt.IsZero() {
		t.Errorf("expected created_at to be set")
	}

	if _, err := s.Repo().GetUser(ctx, created.ID+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Repo().GetUserByEmail(ctx, "nobody@x.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	users, err := s.Repo().ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}

	seedUser(t, s, "a@x.com")
	seedUser(t, s, "b@x.com")
	users, err = s.Repo().ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].Email != "a@x.com" {
		t.Errorf("unexpected users %+v", users)
	}
}

func TestTodosAreOwnerScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "a@x.com")
	bob := seedUser(t, s, "b@x.com")
	repo := s.Repo()

	aliceTodo, err := repo.CreateUserTodo(ctx, alice.ID, "Test Task 1", "body")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if aliceTodo.ID == 0 || aliceTodo.Status != api.StatusActive {
		t.Errorf("unexpected created todo %+v", aliceTodo)
	}
	bobTodo, err := repo.CreateUserTodo(ctx, bob.ID, "Test Task 2", "body")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	todos, err := repo.GetUserTodos(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 1 || todos[0].ID != aliceTodo.ID {
		t.Fatalf("expected only alice's todo, got %+v", todos)
	}
	if todos[0].DoneAt != nil || todos[0].DeletedAt != nil {
		t.Errorf("expected done/deleted timestamps to be unset")
	}

	if _, err := repo.GetUserTodo(ctx, alice.ID, bobTodo.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected bob's todo to be invisible to alice, got %v", err)
	}
	got, err := repo.GetUserTodo(ctx, bob.ID, bobTodo.ID)
	if err != nil {
		t.Fatalf("get own todo: %v", err)
	}
	if got.Title != "Test Task 2" || got.UserID != bob.ID {
		t.Errorf("unexpected todo %+v", got)
	}
}

func TestTodoRequiresExistingOwner(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Repo().CreateUserTodo(context.Background(), 999, "t", "b"); err == nil {
		t.Fatal("expected foreign key violation for unknown owner")
	}
}

func TestDeletingUserCascadesTodos(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "a@x.com")
	if _, err := s.Repo().CreateUserTodo(ctx, alice.ID, "t", "b"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.DB().Exec("DELETE FROM users WHERE id = $1", alice.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if n := countRows(t, s, "todo"); n != 0 {
		t.Errorf("expected todos to be cascade-deleted, got %d", n)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(r *Repo) error {
		if _, err := r.CreateUser(ctx, api.User{Email: "a@x.com", Username: "a", PasswordHash: "h"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if n := countRows(t, s, "users"); n != 0 {
		t.Errorf("expected rollback to leave no users, got %d", n)
	}
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic to propagate")
			}
		}()
		_ = s.InTx(ctx, func(r *Repo) error {
			if _, err := r.CreateUser(ctx, api.User{Email: "a@x.com", Username: "a", PasswordHash: "h"}); err != nil {
				return err
			}
			panic("unhandled")
		})
	}()

	if n := countRows(t, s, "users"); n != 0 {
		t.Errorf("expected rollback to leave no users, got %d", n)
	}
}

func TestInTxCommits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(r *Repo) error {
		_, err := r.CreateUser(ctx, api.User{Email: "a@x.com", Username: "a", PasswordHash: "h"})
		return err
	})
	if err != nil {
		t.Fatalf("in tx: %v", err)
	}
	if n := countRows(t, s, "users"); n != 1 {
		t.Errorf("expected committed user, got %d", n)
	}
}
