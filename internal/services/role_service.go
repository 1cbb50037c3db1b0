package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
)

// RoleService exposes role records to admins. Roles are bound at
// registration and never reassigned.
type RoleService struct {
	roles repository.RoleRepository
	authz *Authorizer
	cache *cache.Cache
	opts  Options
	log   *zap.Logger
}

func NewRoleService(roles repository.RoleRepository, authz *Authorizer, c *cache.Cache, opts Options) *RoleService {
	opts = opts.withDefaults()
	return &RoleService{
		roles: roles,
		authz: authz,
		cache: c,
		opts:  opts,
		log:   opts.Logger.Named("roles"),
	}
}

func (s *RoleService) List(ctx context.Context, callerID uint64) ([]models.Role, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	var (
		roles []models.Role
		err   error
	)
	if s.cache != nil {
		roles, err = cache.GetOrLoadJSON(s.cache, ctx, constants.CacheKeyRoles, s.opts.CacheTTL, s.roles.List)
	} else {
		roles, err = s.roles.List(ctx)
	}
	if err != nil {
		return nil, fail(s.log, "list roles", err)
	}
	return roles, nil
}

func (s *RoleService) Get(ctx context.Context, callerID, id uint64) (*models.Role, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, fail(s.log, "find role", notFoundAs(err, apierrors.ErrNotFound))
	}
	return role, nil
}

// Delete removes a role record. Its user is left without a role and is
// denied every privileged operation.
func (s *RoleService) Delete(ctx context.Context, callerID, id uint64) error {
	if _, err := s.Get(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		return fail(s.log, "delete role", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, constants.CacheKeyRoles, constants.CacheKeyUsers)
	}
	s.log.Info("role deleted", zap.Uint64("role_id", id), zap.Uint64("by", callerID))
	return nil
}
