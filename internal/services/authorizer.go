package services

import (
	"context"
	"errors"
	"fmt"

	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"gorm.io/gorm"
)

// Authorizer checks a caller's role before privileged operations.
// A caller that is soft-deleted or has no role record is treated as
// unauthenticated.
type Authorizer struct {
	users repository.UserRepository
	roles repository.RoleRepository
}

func NewAuthorizer(users repository.UserRepository, roles repository.RoleRepository) *Authorizer {
	return &Authorizer{users: users, roles: roles}
}

// RoleOf returns the role of an active caller.
func (a *Authorizer) RoleOf(ctx context.Context, userID uint64) (models.RoleName, error) {
	if _, err := a.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apierrors.ErrUnauthorized
		}
		return "", apierrors.Internal("failed to load user", err)
	}

	role, err := a.roles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apierrors.ErrUnauthorized
		}
		return "", apierrors.Internal("failed to load role", err)
	}
	return role.Name, nil
}

// Require fails with Forbidden unless the caller holds one of allowed.
func (a *Authorizer) Require(ctx context.Context, userID uint64, allowed ...models.RoleName) (models.RoleName, error) {
	name, err := a.RoleOf(ctx, userID)
	if err != nil {
		return "", err
	}

	switch name {
	case models.RoleAdmin, models.RoleManager, models.RoleUser:
		for _, r := range allowed {
			if r == name {
				return name, nil
			}
		}
		return name, apierrors.ErrForbidden
	default:
		return "", apierrors.Wrap(apierrors.KindUnauthorized, apierrors.ErrUnauthorized.Message,
			fmt.Errorf("unknown role %q", name))
	}
}

// IsAdmin reports whether the caller holds the admin role.
func (a *Authorizer) IsAdmin(ctx context.Context, userID uint64) (bool, error) {
	name, err := a.RoleOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return name == models.RoleAdmin, nil
}
