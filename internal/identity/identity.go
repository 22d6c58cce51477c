// Package identity carries the signed-in user through the client as an
// explicit value instead of ambient session storage.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoUser is returned when neither a token subject nor a user id is known.
	ErrNoUser = errors.New("identity: no user id")
)

// Identity is the read-only session context handed to every component
// that talks to the backend. Logging out means discarding the value.
type Identity struct {
	UserID string
	Token  string
}

// Claims are the token claims the client reads.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// User returns the user_id claim, falling back to the subject.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Sign issues an HS256 token for userID that expires after ttl.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// FromToken reads the user id from a bearer token. The signature is not
// verified here: the backend does that on every request, the client only
// needs to know whose session it is.
func FromToken(token string) (Identity, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}

	userID := claims.User()
	if userID == "" {
		return Identity{}, ErrNoUser
	}

	return Identity{UserID: userID, Token: token}, nil
}

// Resolve builds an identity from configuration. A token takes precedence;
// otherwise userID is used without credentials.
func Resolve(userID, token string) (Identity, error) {
	if token != "" {
		id, err := FromToken(token)
		if err != nil {
			return Identity{}, err
		}
		if userID != "" && userID != id.UserID {
			return Identity{}, fmt.Errorf("identity: token belongs to %q, not %q", id.UserID, userID)
		}
		return id, nil
	}
	if userID == "" {
		return Identity{}, ErrNoUser
	}
	return Identity{UserID: userID}, nil
}

// Authorization returns the Authorization header value, or "" without a token.
func (i Identity) Authorization() string {
	if i.Token == "" {
		return ""
	}
	return "Bearer " + i.Token
}
