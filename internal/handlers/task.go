package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/services"
	"github.com/yukikurage/task-lifecycle-api/internal/utils"
)

type TaskHandler struct {
	tasks *services.TaskService
	loc   *time.Location
}

func NewTaskHandler(tasks *services.TaskService, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskHandler{tasks: tasks, loc: loc}
}

// ListTasks returns active tasks, optionally filtered by priority and status
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var q dto.TaskFilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apierrors.BadRequestWithDetails(c, "The given data was invalid.", dto.ValidationDetails(err))
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), utils.TaskFilterFromQuery(q.Priority, q.Status))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": dto.ToTaskDTOs(tasks, h.loc)})
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), taskID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": dto.ToTaskDTO(*task, h.loc)})
}

// MyTasks returns the tasks assigned to the caller
func (h *TaskHandler) MyTasks(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListMine(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": dto.ToTaskDTOs(tasks, h.loc)})
}

// StatusUpdates returns a task's status history
func (h *TaskHandler) StatusUpdates(c *gin.Context) {
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	updates, err := h.tasks.History(c.Request.Context(), taskID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status_updates": dto.ToTaskStatusUpdateDTOs(updates)})
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.TaskType(req.Type),
		Priority:    models.TaskPriority(req.Priority),
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    dto.ToTaskDTO(*task, h.loc),
	})
}

// UpdateTask applies a sparse update
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, taskID, services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Type:        req.Type,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task updated successfully",
		"task":    dto.ToTaskDTO(*task, h.loc),
	})
}

// AssignTask assigns an unassigned task to a user
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.AssignTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Assign(c.Request.Context(), userID, taskID, req.UserID, req.DueDate)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task assigned successfully",
		"task":    dto.ToTaskDTO(*task, h.loc),
	})
}

// ChangeStatus moves a task through the status workflow
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.ChangeStatus(c.Request.Context(), userID, taskID, models.TaskStatus(req.Status))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task status updated successfully",
		"task":    dto.ToTaskDTO(*task, h.loc),
	})
}

// DeleteTask soft-deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), userID, taskID); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// DeletedTasks returns soft-deleted tasks
func (h *TaskHandler) DeletedTasks(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListDeleted(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": dto.ToTaskDTOs(tasks, h.loc)})
}

// RestoreTask brings back a soft-deleted task
func (h *TaskHandler) RestoreTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Restore(c.Request.Context(), userID, taskID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task restored successfully",
		"task":    dto.ToTaskDTO(*task, h.loc),
	})
}

// ForceDeleteTask permanently removes a task
func (h *TaskHandler) ForceDeleteTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.tasks.ForceDelete(c.Request.Context(), userID, taskID); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task permanently deleted"})
}
