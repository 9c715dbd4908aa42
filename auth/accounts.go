package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
)

// ErrInvalidCredentials is the single answer for an unknown email and a
// wrong password alike.
var ErrInvalidCredentials = apperr.New(apperr.CodeInvalidCredential, "Invalid password or email")

// CredentialStore persists the users sign-up and login work against.
type CredentialStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, u api.User) (api.User, error)
	GetUserByEmail(ctx context.Context, email string) (api.User, error)
}

// Role selects the flags a new account is created with.
type Role int

const (
	RoleRegular Role = iota
	RoleSuperuser
)

// NormalizeEmail trims the address and lowercases its domain part. The local
// part is kept as typed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// ValidateSignUp normalizes req and returns per-field errors for anything
// malformed. It does not check email uniqueness.
func ValidateSignUp(req api.SignUpRequest) (api.SignUpRequest, error) {
	req.Email = NormalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	fields := apperr.FieldErrors{}
	switch {
	case req.Email == "":
		fields.Add("email", "This field is required.")
	case utf8.RuneCountInString(req.Email) > api.MaxEmailLen:
		fields.Add("email", fmt.Sprintf("Ensure this field has no more than %d characters.", api.MaxEmailLen))
	case !isEmailAddress(req.Email):
		fields.Add("email", "Enter a valid email address.")
	}
	switch {
	case req.Username == "":
		fields.Add("username", "This field is required.")
	case utf8.RuneCountInString(req.Username) > api.MaxUsernameLen:
		fields.Add("username", fmt.Sprintf("Ensure this field has no more than %d characters.", api.MaxUsernameLen))
	}
	if req.Password == "" {
		fields.Add("password", "This field is required.")
	}
	if err := fields.Err(); err != nil {
		return api.SignUpRequest{}, err
	}
	return req, nil
}

func isEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// Register validates req, rejects a taken email and persists the user with a
// bcrypt-hashed password.
func Register(ctx context.Context, creds CredentialStore, req api.SignUpRequest, role Role) (api.User, error) {
	req, err := ValidateSignUp(req)
	if err != nil {
		return api.User{}, err
	}

	exists, err := creds.EmailExists(ctx, req.Email)
	if err != nil {
		return api.User{}, err
	}
	if exists {
		return api.User{}, apperr.Validation(map[string][]string{"email": {"Email has already been used"}})
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return api.User{}, err
	}

	u := api.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hashed,
	}
	if role == RoleSuperuser {
		u.IsStaff = true
		u.IsSuperuser = true
	}
	return creds.CreateUser(ctx, u)
}

// Authenticate returns the user whose email and password match, or
// ErrInvalidCredentials.
func Authenticate(ctx context.Context, creds CredentialStore, email, password string) (api.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return api.User{}, ErrInvalidCredentials
	}

	u, err := creds.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.New(apperr.CodeNotFound, "")) {
			return api.User{}, ErrInvalidCredentials
		}
		return api.User{}, err
	}

	ok, err := CheckPassword(u.PasswordHash, password)
	if err != nil {
		return api.User{}, err
	}
	if !ok {
		return api.User{}, ErrInvalidCredentials
	}
	return u, nil
}
