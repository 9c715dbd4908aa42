package api

import (
	"time"
)

// StatusActive is the status every new Todo starts in.
const StatusActive = 1

const (
	MaxEmailLen    = 80
	MaxUsernameLen = 45
	MaxTitleLen    = 100
	MaxBodyLen     = 100
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
}

type Todo struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Status    int        `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DoneAt    *time.Time `json:"done_at"`
	DeletedAt *time.Time `json:"deleted_at"`
	UserID    int64      `json:"user"`
}

// Caller is the authenticated identity a handler acts for.
type Caller struct {
	UserID   int64
	Username string
	IsStaff  bool
	// Token is the raw access token the request was authenticated with.
	Token string
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// Response is the {ok, message} envelope. Message is a string for most
// outcomes and a field-error map for sign-up validation failures.
type Response struct {
	OK      bool `json:"ok"`
	Message any  `json:"message"`
}

type LoginResponse struct {
	OK      bool      `json:"ok"`
	Message string    `json:"message"`
	Email   string    `json:"email"`
	Tokens  TokenPair `json:"tokens"`
}

type WhoAmIResponse struct {
	User string `json:"user"`
	Auth string `json:"auth"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}
