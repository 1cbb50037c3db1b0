package models

import "time"

// TaskStatusUpdate is an append-only record of a task entering a status.
type TaskStatusUpdate struct {
	ID        uint64     `gorm:"primarykey" json:"id"`
	TaskID    uint64     `gorm:"index;not null" json:"task_id"`
	Status    TaskStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}
