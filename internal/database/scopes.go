package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
)

// WithPriority restricts a task query to one priority when p is set.
func WithPriority(p *models.TaskPriority) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p == nil {
			return db
		}
		return db.Where("tasks.priority = ?", *p)
	}
}

// WithStatus restricts a task query to one status when s is set.
func WithStatus(s *models.TaskStatus) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s == nil {
			return db
		}
		return db.Where("tasks.status = ?", *s)
	}
}

// OwnedBy restricts an annotation query to one owner.
func OwnedBy(ownerType models.OwnerType, ownerID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID)
	}
}
