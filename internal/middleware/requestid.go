package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yukikurage/task-lifecycle-api/internal/constants"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(constants.HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(constants.HeaderRequestID, rid)
		c.Set(constants.ContextKeyRequestID, rid)
		c.Next()
	}
}
