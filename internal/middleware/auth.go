package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

const (
	actorKey = "actor"
	tokenKey = "sessionToken"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth rejects requests without a valid bearer session and stores the
// authenticated user in the context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, models.CodeInvalidCredentials, "se requiere iniciar sesión")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, models.ErrInvalidCredentials) {
				abort(c, http.StatusUnauthorized, models.CodeInvalidCredentials, "sesión inválida o expirada")
				return
			}
			zap.S().Warnw("autenticación fallida", "error", err, "requestId", c.GetString("requestId"))
			abort(c, http.StatusServiceUnavailable, models.CodeIO, models.MsgConnection)
			return
		}

		c.Set(actorKey, user)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// RequireRole lets through only the listed roles. It must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			abort(c, http.StatusUnauthorized, models.CodeInvalidCredentials, "se requiere iniciar sesión")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, models.CodeForbidden, models.ErrForbidden.Error())
	}
}

// Actor returns the authenticated user, or nil.
func Actor(c *gin.Context) *models.User {
	if v, ok := c.Get(actorKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	if v := c.GetString(tokenKey); v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func abort(c *gin.Context, status int, code models.ErrorCode, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg, "code": code})
}
