// Package middleware provides the gin middleware shared by the API handlers.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/config"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// ErrNoToken is returned when a request carries no session token.
var ErrNoToken = errors.New("no session token")

// Authenticator verifies session tokens issued by the auth provider.
type Authenticator struct {
	secret     []byte
	audience   string
	cookieName string
}

// NewAuthenticator creates an authenticator from the auth configuration.
func NewAuthenticator(cfg *config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret:     []byte(cfg.JWTSecret),
		audience:   cfg.Audience,
		cookieName: cfg.CookieName,
	}
}

// ParseToken validates an HS256 token and returns its subject as a user id.
func (a *Authenticator) ParseToken(tokenString string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return userID, nil
}

// AbortFunc writes the response for a rejected request.
type AbortFunc func(c *gin.Context, statusCode int, message string)

// Require rejects requests without a valid session token and stores the
// user id under UserIDKey.
func (a *Authenticator) Require() gin.HandlerFunc {
	return a.RequireWith(abortUnauthorized)
}

// RequireWith is Require with a custom rejection body.
func (a *Authenticator) RequireWith(abort AbortFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := a.tokenFrom(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		userID, err := a.ParseToken(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// tokenFrom reads the bearer token from the Authorization header, falling
// back to the session cookie.
func (a *Authenticator) tokenFrom(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrNoToken
		}
		return strings.TrimSpace(token), nil
	}
	if a.cookieName != "" {
		if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
			return cookie, nil
		}
	}
	return "", ErrNoToken
}

// UserID returns the authenticated user id set by Require.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abortUnauthorized(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
