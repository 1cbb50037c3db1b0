package repository

import (
	"context"

	"github.com/yukikurage/task-lifecycle-api/internal/database"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) WithTx(tx *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: tx}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.Version == 0 {
		task.Version = 1
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID finds an active task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindWithTrashed finds a task by ID including soft-deleted rows
func (r *GormTaskRepository) FindWithTrashed(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Unscoped().First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves active tasks matching the filter
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).
		Scopes(database.WithPriority(filter.Priority), database.WithStatus(filter.Status)).
		Order("tasks.id ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListTrashed retrieves soft-deleted tasks
func (r *GormTaskRepository) ListTrashed(ctx context.Context) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL").
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListAssignedTo retrieves active tasks assigned to userID
func (r *GormTaskRepository) ListAssignedTo(ctx context.Context, userID uint64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).
		Where("assigned_to = ?", userID).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

// TitleTaken checks all tasks, including soft-deleted ones, since the
// title column is unique.
func (r *GormTaskRepository) TitleTaken(ctx context.Context, title string, excludeID uint64) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Unscoped().Model(&models.Task{}).Where("title = ?", title)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateVersioned applies fields guarded by the task's version
func (r *GormTaskRepository) UpdateVersioned(ctx context.Context, task *models.Task, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTask
	}

	return r.db.WithContext(ctx).First(task, task.ID).Error
}

// SoftDelete marks a task deleted
func (r *GormTaskRepository) SoftDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Task{}, id).Error
}

// Restore clears the soft-delete mark
func (r *GormTaskRepository) Restore(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Unscoped().
		Model(&models.Task{}).
		Where("id = ?", id).
		Update("deleted_at", nil).Error
}

// ForceDelete permanently removes a task and its status history
func (r *GormTaskRepository) ForceDelete(ctx context.Context, id uint64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ?", id).Delete(&models.TaskStatusUpdate{}).Error; err != nil {
		return err
	}
	return db.Unscoped().Delete(&models.Task{}, id).Error
}

// ClearAssignee unassigns every task from userID. Unfinished tasks go back
// to Open with no due date; completed ones keep their status and completion
// date. Returns the ids of the tasks that were reset.
func (r *GormTaskRepository) ClearAssignee(ctx context.Context, userID uint64) ([]uint64, error) {
	var reset []uint64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&models.Task{}).
		Where("assigned_to = ? AND status <> ?", userID, models.TaskStatusCompleted).
		Pluck("id", &reset).Error
	if err != nil {
		return nil, err
	}

	if len(reset) > 0 {
		err = r.db.WithContext(ctx).Unscoped().
			Model(&models.Task{}).
			Where("id IN ?", reset).
			Updates(map[string]any{
				"assigned_to": nil,
				"status":      models.TaskStatusOpen,
				"due_date":    nil,
				"version":     gorm.Expr("version + 1"),
			}).Error
		if err != nil {
			return nil, err
		}
	}

	err = r.db.WithContext(ctx).Unscoped().
		Model(&models.Task{}).
		Where("assigned_to = ?", userID).
		Updates(map[string]any{
			"assigned_to": nil,
			"version":     gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return nil, err
	}
	return reset, nil
}
