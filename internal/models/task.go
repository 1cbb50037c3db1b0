package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "Open"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusBlocked    TaskStatus = "Blocked"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusCompleted, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

type TaskType string

const (
	TaskTypeBug         TaskType = "Bug"
	TaskTypeFeature     TaskType = "Feature"
	TaskTypeImprovement TaskType = "Improvement"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeBug, TaskTypeFeature, TaskTypeImprovement:
		return true
	default:
		return false
	}
}

type Task struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"title"`
	Description string         `gorm:"type:varchar(256)" json:"description"`
	Type        TaskType       `gorm:"type:varchar(20);not null" json:"type"`
	Priority    TaskPriority   `gorm:"type:varchar(20);not null" json:"priority"`
	Status      TaskStatus     `gorm:"type:varchar(20);not null;default:'Open'" json:"status"`
	DueDate     *time.Time     `json:"due_date"`
	AssignedTo  *uint64        `gorm:"index" json:"assigned_to"`
	Version     uint64         `gorm:"not null;default:1" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Assignee      *User              `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	StatusUpdates []TaskStatusUpdate `gorm:"foreignKey:TaskID" json:"status_updates,omitempty"`
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID uint64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
