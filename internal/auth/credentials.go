package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
)

const (
	HeaderProject = "X-Appwrite-Project"
	HeaderJWT     = "X-Appwrite-JWT"
)

// Claims are the fields the backend puts in its account JWTs.
type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// ParseClaims reads the claims of token without verifying its signature.
// The token is only forwarded to the backend, which does the verification.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.NewAppError(codes.Unauthenticated, "malformed session token", fmt.Errorf("%w: %w", errors.ErrUnauthorized, err))
	}
	return claims, nil
}

// Credentials identify the signed-in user on every backend request and
// realtime handshake.
type Credentials struct {
	project   string
	cookie    string
	token     string
	userID    string
	expiresAt time.Time
}

func NewCredentials(project, cookie, token, userID string) (*Credentials, error) {
	c := &Credentials{
		project: project,
		cookie:  strings.TrimSpace(cookie),
		token:   strings.TrimSpace(token),
		userID:  userID,
	}

	if c.token != "" {
		claims, err := ParseClaims(c.token)
		if err != nil {
			return nil, err
		}
		if c.userID == "" {
			c.userID = claims.UserID
		}
		if claims.ExpiresAt != nil {
			c.expiresAt = claims.ExpiresAt.Time
		}
	}

	if c.cookie == "" && c.token == "" {
		return nil, errors.Unauthorized("a session cookie or JWT is required")
	}
	if c.userID == "" {
		return nil, errors.Unauthorized("cannot determine the signed-in user")
	}
	return c, nil
}

func (c *Credentials) UserID() string {
	return c.userID
}

func (c *Credentials) ExpiresAt() time.Time {
	return c.expiresAt
}

// Expired reports whether the JWT has run out. Cookie sessions never expire
// on the client side.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}

func (c *Credentials) cookieHeader() string {
	if c.cookie == "" {
		return ""
	}
	if strings.Contains(c.cookie, "=") {
		return c.cookie
	}
	return "a_session_" + c.project + "=" + c.cookie
}

// Headers returns a fresh header set carrying the credentials.
func (c *Credentials) Headers() http.Header {
	h := http.Header{}
	h.Set(HeaderProject, c.project)
	if c.token != "" {
		h.Set(HeaderJWT, c.token)
	}
	if cookie := c.cookieHeader(); cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}

func (c *Credentials) Apply(req *http.Request) {
	for k, v := range c.Headers() {
		req.Header[k] = v
	}
}
