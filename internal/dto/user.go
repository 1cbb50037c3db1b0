package dto

import (
	"time"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      models.RoleName `json:"role,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// RoleDTO represents a role binding in API responses
type RoleDTO struct {
	ID        uint64          `json:"id"`
	UserID    uint64          `json:"user_id"`
	Name      models.RoleName `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	dto := UserDTO{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
	// Include role if loaded
	if user.Role != nil {
		dto.Role = user.Role.Name
	}
	if user.DeletedAt.Valid {
		deletedAt := user.DeletedAt.Time
		dto.DeletedAt = &deletedAt
	}
	return dto
}

func ToUserDTOs(users []models.User) []UserDTO {
	items := make([]UserDTO, len(users))
	for i, u := range users {
		items[i] = ToUserDTO(u)
	}
	return items
}

func ToRoleDTO(role models.Role) RoleDTO {
	return RoleDTO{
		ID:        role.ID,
		UserID:    role.UserID,
		Name:      role.Name,
		CreatedAt: role.CreatedAt,
	}
}

func ToRoleDTOs(roles []models.Role) []RoleDTO {
	items := make([]RoleDTO, len(roles))
	for i, r := range roles {
		items[i] = ToRoleDTO(r)
	}
	return items
}
