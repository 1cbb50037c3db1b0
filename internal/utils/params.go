package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
)

// ParseID reads a positive numeric path parameter.
func ParseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// TaskFilterFromQuery builds a task filter from the priority and status
// query parameters. Empty values leave the filter unset.
func TaskFilterFromQuery(priority, status string) repository.TaskFilter {
	var f repository.TaskFilter
	if priority != "" {
		p := models.TaskPriority(priority)
		f.Priority = &p
	}
	if status != "" {
		s := models.TaskStatus(status)
		f.Status = &s
	}
	return f
}
