package middlewares

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/apperr"
	"github.com/omchandarana/geogate/internal/auth"
	"github.com/omchandarana/geogate/internal/http/respond"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
	em  *respond.ErrorMapper
}

func NewAuthMiddleware(jwt TokenVerifier, em *respond.ErrorMapper) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, em: em}
}

const (
	ctxUserIDKey = "auth.userID"
	ctxEmailKey  = "auth.email"
)

// RequireAuth gates a route behind a Bearer token. A missing or malformed
// header is 401; a token that fails verification is 403, with expiry kept
// distinguishable from a bad signature. Rejections run through the same
// error pipeline as controller failures.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.em.Abort(c, apperr.New(apperr.KindMissingToken, "Missing or invalid Authorization header"))
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			m.em.Abort(c, apperr.New(apperr.KindMissingToken, "Missing or invalid Authorization header"))
			return
		}

		claims, err := m.jwt.Verify(raw)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				m.em.Abort(c, apperr.Wrap(apperr.KindTokenExpired, "Token expired", err))
				return
			}

			m.em.Abort(c, apperr.Wrap(apperr.KindInvalidToken, "Invalid token", err))
			return
		}

		// Stash useful bits of identity on the context
		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxEmailKey, claims.Email)

		c.Next()
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
