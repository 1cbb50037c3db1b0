package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/auth"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
)

// RequireAuth resolves the caller from a bearer token
func RequireAuth(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(constants.HeaderAuthorization)
		if !strings.HasPrefix(header, constants.BearerPrefix) {
			apierrors.Unauthorized(c, "Unauthenticated.")
			return
		}

		claims, err := j.Parse(c.Request.Context(), strings.TrimPrefix(header, constants.BearerPrefix))
		if err != nil {
			apierrors.Unauthorized(c, "Unauthenticated.")
			return
		}

		// Store identity in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, claims.UID)
		c.Set(constants.ContextKeyTokenID, claims.ID)
		c.Set(constants.ContextKeyTokenExp, claims.ExpiresAt.Time)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// GetToken retrieves the id and expiry of the token used for the request
func GetToken(c *gin.Context) (string, time.Time) {
	return c.GetString(constants.ContextKeyTokenID), c.GetTime(constants.ContextKeyTokenExp)
}
