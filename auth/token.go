// Package auth issues and verifies the stateless JWT pair handed out at login,
// and hashes user passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
)

// TokenType distinguishes the two halves of a token pair.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the JWT body. Subject carries the user id as a string as well, so
// generic JWT tooling can read the identity.
type Claims struct {
	UserID    int64     `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer builds an Issuer. now is optional and defaults to time.Now.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{key: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}, nil
}

// Issue produces an access/refresh pair bound to the user's identity.
func (i *Issuer) Issue(user api.User) (api.TokenPair, error) {
	access, err := i.sign(user.ID, TokenAccess, i.accessTTL)
	if err != nil {
		return api.TokenPair{}, err
	}
	refresh, err := i.sign(user.ID, TokenRefresh, i.refreshTTL)
	if err != nil {
		return api.TokenPair{}, err
	}
	return api.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (i *Issuer) Refresh(refreshToken string) (string, error) {
	claims, err := i.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return "", err
	}
	return i.sign(claims.UserID, TokenAccess, i.accessTTL)
}

// Verify parses tokenString and checks signature, algorithm, expiry and type.
func (i *Issuer) Verify(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !token.Valid {
		return nil, apperr.New(apperr.CodeUnauthenticated, "Token is invalid or expired")
	}
	if claims.TokenType != want {
		return nil, apperr.New(apperr.CodeUnauthenticated, "Token has wrong type")
	}
	if claims.UserID <= 0 {
		return nil, apperr.New(apperr.CodeUnauthenticated, "Token contained no recognizable user identification")
	}
	return claims, nil
}

func (i *Issuer) sign(userID int64, kind TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:    userID,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(apperr.CodeUnauthenticated, "Token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperr.Wrap(apperr.CodeUnauthenticated, "Token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperr.Wrap(apperr.CodeUnauthenticated, "Token is malformed", err)
	default:
		return apperr.Wrap(apperr.CodeUnauthenticated, "Token is invalid or expired", err)
	}
}
