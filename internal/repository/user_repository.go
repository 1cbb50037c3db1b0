package repository

import (
	"context"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &GormUserRepository{db: tx}
}

// Create creates a new user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds an active user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds an active user by email
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmailWithTrashed finds a user by email including soft-deleted rows
func (r *GormUserRepository) FindByEmailWithTrashed(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Unscoped().Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailTaken reports whether the email is in use by any user
func (r *GormUserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

// List retrieves active users with their roles
func (r *GormUserRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).Preload("Role").Order("id ASC").Find(&users).Error
	return users, err
}

// ListTrashed retrieves soft-deleted users
func (r *GormUserRepository) ListTrashed(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// Update writes the given columns and reloads user
func (r *GormUserRepository) Update(ctx context.Context, user *models.User, fields map[string]any) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(user).Updates(fields).Error; err != nil {
		return err
	}
	return db.First(user, user.ID).Error
}

// SoftDelete marks a user deleted
func (r *GormUserRepository) SoftDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, id).Error
}

// Restore clears the soft-delete mark
func (r *GormUserRepository) Restore(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Unscoped().
		Model(&models.User{}).
		Where("id = ?", id).
		Update("deleted_at", nil).Error
}

// ForceDelete permanently removes a user row
func (r *GormUserRepository) ForceDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.User{}, id).Error
}
