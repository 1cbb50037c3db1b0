package repository

import (
	"context"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"gorm.io/gorm"
)

// GormRoleRepository is a GORM implementation of RoleRepository
type GormRoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new RoleRepository
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: db}
}

func (r *GormRoleRepository) WithTx(tx *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: tx}
}

// Create binds a role to a user
func (r *GormRoleRepository) Create(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// FindByUserID finds the role bound to a user
func (r *GormRoleRepository) FindByUserID(ctx context.Context, userID uint64) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByID finds a role by ID
func (r *GormRoleRepository) FindByID(ctx context.Context, id uint64) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// List lists all roles
func (r *GormRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	roles := []models.Role{}
	err := r.db.WithContext(ctx).Order("id ASC").Find(&roles).Error
	return roles, err
}

// Delete removes a role
func (r *GormRoleRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Role{}, id).Error
}

// DeleteByUserID removes the role bound to a user
func (r *GormRoleRepository) DeleteByUserID(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Role{}).Error
}
