package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/middleware"
	"github.com/yukikurage/task-lifecycle-api/internal/utils"
)

// bindJSON decodes the body into req, responding 422 with field details on
// failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if bodyTooLarge(c, err) {
			return false
		}
		apierrors.BadRequestWithDetails(c, "The given data was invalid.", dto.ValidationDetails(err))
		return false
	}
	return true
}

// callerID returns the authenticated user, responding 401 when absent.
func callerID(c *gin.Context) (uint64, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Unauthenticated.")
		return 0, false
	}
	return id, true
}

// pathID reads the :id parameter, responding 404 when it is not a valid id.
func pathID(c *gin.Context) (uint64, bool) {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		apierrors.NotFound(c, "")
		return 0, false
	}
	return id, true
}

// bodyTooLarge responds 413 when err comes from a body over the size limit.
func bodyTooLarge(c *gin.Context, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
		apierrors.New(apierrors.KindValidation, "Request body too large"))
	return true
}
