package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		SessionID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := token.SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return s
}

func TestCredentialsFromJWT(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := signedToken(t, "u1", exp)

	c, err := NewCredentials("proj", "", token, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID())
	assert.True(t, c.ExpiresAt().Equal(exp))
	assert.False(t, c.Expired(time.Now()))
	assert.True(t, c.Expired(exp.Add(time.Second)))

	h := c.Headers()
	assert.Equal(t, "proj", h.Get(HeaderProject))
	assert.Equal(t, token, h.Get(HeaderJWT))
	assert.Empty(t, h.Get("Cookie"))
}

func TestCredentialsFromCookie(t *testing.T) {
	c, err := NewCredentials("proj", "abc123", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a_session_proj=abc123", c.Headers().Get("Cookie"))
	assert.False(t, c.Expired(time.Now()))

	raw, err := NewCredentials("proj", "a_session_proj=xyz; other=1", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a_session_proj=xyz; other=1", raw.Headers().Get("Cookie"))

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	c.Apply(req)
	assert.Equal(t, "proj", req.Header.Get(HeaderProject))
}

func TestCredentialsRequireIdentity(t *testing.T) {
	_, err := NewCredentials("proj", "", "", "u1")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = NewCredentials("proj", "cookie", "", "")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = NewCredentials("proj", "", "not-a-jwt", "")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}
