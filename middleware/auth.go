package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/logging"
)

const ContextUserKey = "current_user"

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware rejects the request unless it carries a valid bearer token for
// an active user. Every token failure gets the same 401 body; the actual
// reason is only logged.
func AuthMiddleware(auth Authenticator, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		l := logging.FromContext(ctx, log)

		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			l.Info(ctx, "authentication failed", "reason", "missing or malformed authorization header")
			abortUnauthenticated(c)
			return
		}

		user, err := auth.Authenticate(ctx, tokenStr)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindUnauthenticated:
				l.Info(ctx, "authentication failed", "reason", err.Error())
				abortUnauthenticated(c)
			case apperr.KindInactiveAccount:
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Inactive user"})
			default:
				l.Error(ctx, "authentication error", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			}
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func abortUnauthenticated(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
}
