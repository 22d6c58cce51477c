package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"subject", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-sub"}}, "u-sub"},
		{"user_id claim wins", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-sub"}, UserID: "u-claim"}, "u-claim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := sign(t, tt.claims)

			id, err := FromToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.UserID)
			assert.Equal(t, "Bearer "+token, id.Authorization())
		})
	}
}

func TestFromTokenErrors(t *testing.T) {
	_, err := FromToken("not-a-token")
	assert.Error(t, err)

	_, err = FromToken(sign(t, Claims{}))
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestResolve(t *testing.T) {
	id, err := Resolve("u1", "")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1"}, id)
	assert.Empty(t, id.Authorization())

	_, err = Resolve("", "")
	assert.ErrorIs(t, err, ErrNoUser)

	token := sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u2"}})
	_, err = Resolve("u1", token)
	assert.Error(t, err)

	id, err = Resolve("", token)
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
}

func TestSign(t *testing.T) {
	token, err := Sign("secret", "u3", time.Hour)
	require.NoError(t, err)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "u3", claims.User())
}
