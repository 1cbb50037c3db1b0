package dto

import (
	"time"

	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
)

// TaskDTO represents a task in API responses. Due dates are rendered as
// dd-mm-yyyy hh:mm in the service timezone.
type TaskDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        models.TaskType     `json:"type"`
	Priority    models.TaskPriority `json:"priority"`
	Status      models.TaskStatus   `json:"status"`
	DueDate     *string             `json:"due_date"`
	AssignedTo  *uint64             `json:"assigned_to"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}

// TaskStatusUpdateDTO represents one history entry
type TaskStatusUpdateDTO struct {
	ID        uint64            `json:"id"`
	TaskID    uint64            `json:"task_id"`
	Status    models.TaskStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// FormatDueDate renders t in loc using the due-date layout
func FormatDueDate(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	s := t.In(loc).Format(constants.DueDateLayout)
	return &s
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task, loc *time.Location) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Type:        task.Type,
		Priority:    task.Priority,
		Status:      task.Status,
		DueDate:     FormatDueDate(task.DueDate, loc),
		AssignedTo:  task.AssignedTo,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.DeletedAt.Valid {
		deletedAt := task.DeletedAt.Time
		dto.DeletedAt = &deletedAt
	}
	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task, loc *time.Location) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task, loc)
	}
	return items
}

// ToTaskStatusUpdateDTOs converts history entries
func ToTaskStatusUpdateDTOs(updates []models.TaskStatusUpdate) []TaskStatusUpdateDTO {
	items := make([]TaskStatusUpdateDTO, len(updates))
	for i, u := range updates {
		items[i] = TaskStatusUpdateDTO{
			ID:        u.ID,
			TaskID:    u.TaskID,
			Status:    u.Status,
			CreatedAt: u.CreatedAt,
		}
	}
	return items
}
