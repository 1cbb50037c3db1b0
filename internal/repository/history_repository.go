package repository

import (
	"context"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"gorm.io/gorm"
)

// GormStatusHistoryRepository is a GORM implementation of StatusHistoryRepository
type GormStatusHistoryRepository struct {
	db *gorm.DB
}

func NewStatusHistoryRepository(db *gorm.DB) StatusHistoryRepository {
	return &GormStatusHistoryRepository{db: db}
}

func (r *GormStatusHistoryRepository) WithTx(tx *gorm.DB) StatusHistoryRepository {
	return &GormStatusHistoryRepository{db: tx}
}

func (r *GormStatusHistoryRepository) Append(ctx context.Context, taskID uint64, status models.TaskStatus) error {
	return r.db.WithContext(ctx).Create(&models.TaskStatusUpdate{
		TaskID: taskID,
		Status: status,
	}).Error
}

func (r *GormStatusHistoryRepository) ListForTask(ctx context.Context, taskID uint64) ([]models.TaskStatusUpdate, error) {
	updates := []models.TaskStatusUpdate{}
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Find(&updates).Error
	return updates, err
}
