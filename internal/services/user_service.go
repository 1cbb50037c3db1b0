package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/task-lifecycle-api/internal/auth"
	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"github.com/yukikurage/task-lifecycle-api/internal/storage"
)

var ErrInvalidCredentials = apierrors.New(apierrors.KindUnauthorized, "Invalid email or password")

// UserService handles account business logic
type UserService struct {
	db    *gorm.DB
	repos repository.Set
	authz *Authorizer
	cache *cache.Cache
	blobs storage.BlobStore
	jwt   *auth.JWTer
	opts  Options
	log   *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, repos repository.Set, authz *Authorizer, c *cache.Cache, blobs storage.BlobStore, jwt *auth.JWTer, opts Options) *UserService {
	opts = opts.withDefaults()
	return &UserService{
		db:    db,
		repos: repos,
		authz: authz,
		cache: c,
		blobs: blobs,
		jwt:   jwt,
		opts:  opts,
		log:   opts.Logger.Named("users"),
	}
}

// RegisterInput represents the information needed to create an account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileInput is a sparse profile update
type UpdateProfileInput struct {
	Name     *string
	Password *string
}

// Session is the result of a successful login
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func (s *UserService) invalidate(ctx context.Context, keys ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, keys...)
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func passwordTooShort() error {
	return apierrors.Validation("The password field is invalid.", map[string]string{
		"password": fmt.Sprintf("must be at least %d characters", constants.MinPasswordLength),
	})
}

// Register creates a user and binds the role implied by the email.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)

	details := map[string]string{}
	if name == "" {
		details["name"] = "is required"
	} else if runeLen(name) > constants.MaxNameLength {
		details["name"] = fmt.Sprintf("must not be greater than %d characters", constants.MaxNameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		details["email"] = "must be a valid email address"
	}
	if len(input.Password) < constants.MinPasswordLength {
		details["password"] = fmt.Sprintf("must be at least %d characters", constants.MinPasswordLength)
	}
	if len(details) > 0 {
		return nil, apierrors.Validation("The given data was invalid.", details)
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		return nil, fail(s.log, "register user", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hashed}
	role := &models.Role{Name: models.RoleForEmail(email)}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		taken, err := r.Users.EmailTaken(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return apierrors.Validation("The email has already been taken.", map[string]string{"email": "has already been taken"})
		}
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		role.UserID = user.ID
		return r.Roles.Create(ctx, role)
	})
	if err != nil {
		return nil, fail(s.log, "register user", err)
	}

	user.Role = role
	s.invalidate(ctx, constants.CacheKeyUsers, constants.CacheKeyRoles)
	s.log.Info("user registered", zap.Uint64("user_id", user.ID), zap.String("role", string(role.Name)))
	return user, nil
}

// Login checks credentials and issues a bearer token
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repos.Users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fail(s.log, "login", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.jwt.Issue(user.ID)
	if err != nil {
		return nil, fail(s.log, "issue token", err)
	}
	s.attachRole(ctx, user)
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Logout revokes the caller's current token
func (s *UserService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if err := s.jwt.Invalidate(ctx, tokenID, expiresAt); err != nil {
		return fail(s.log, "logout", err)
	}
	return nil
}

func (s *UserService) attachRole(ctx context.Context, user *models.User) {
	role, err := s.repos.Roles.FindByUserID(ctx, user.ID)
	if err == nil {
		user.Role = role
	}
}

// Profile returns the caller's account with its role
func (s *UserService) Profile(ctx context.Context, callerID uint64) (*models.User, error) {
	user, err := s.repos.Users.FindByID(ctx, callerID)
	if err != nil {
		return nil, fail(s.log, "find user", notFoundAs(err, apierrors.ErrUserNotFound))
	}
	s.attachRole(ctx, user)
	return user, nil
}

// UpdateProfile changes name and/or password. Callers may update themselves;
// admins may update anyone.
func (s *UserService) UpdateProfile(ctx context.Context, callerID, targetID uint64, input UpdateProfileInput) (*models.User, error) {
	if callerID != targetID {
		if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
			return nil, err
		}
	}

	name := blank(input.Name)
	var password *string
	if input.Password != nil && *input.Password != "" {
		password = input.Password
	}
	if name == nil && password == nil {
		return nil, apierrors.ErrNoFieldsProvided
	}

	fields := map[string]any{}
	if name != nil {
		if runeLen(*name) > constants.MaxNameLength {
			return nil, apierrors.Validation("The name field is invalid.", map[string]string{
				"name": fmt.Sprintf("must not be greater than %d characters", constants.MaxNameLength),
			})
		}
		fields["name"] = *name
	}
	if password != nil {
		if len(*password) < constants.MinPasswordLength {
			return nil, passwordTooShort()
		}
		hashed, err := hashPassword(*password)
		if err != nil {
			return nil, fail(s.log, "update profile", err)
		}
		fields["password_hash"] = hashed
	}

	user, err := s.repos.Users.FindByID(ctx, targetID)
	if err != nil {
		return nil, fail(s.log, "find user", notFoundAs(err, apierrors.ErrUserNotFound))
	}
	if err := s.repos.Users.Update(ctx, user, fields); err != nil {
		return nil, fail(s.log, "update profile", err)
	}

	s.invalidate(ctx, constants.CacheKeyUsers)
	s.log.Info("profile updated", zap.Uint64("user_id", targetID), zap.Uint64("by", callerID))
	return user, nil
}

// DeleteSelf soft-deletes the caller's own account and revokes the token
// used for the request.
func (s *UserService) DeleteSelf(ctx context.Context, callerID uint64, tokenID string, expiresAt time.Time) error {
	if _, err := s.repos.Users.FindByID(ctx, callerID); err != nil {
		return fail(s.log, "find user", notFoundAs(err, apierrors.ErrUserNotFound))
	}
	if err := s.repos.Users.SoftDelete(ctx, callerID); err != nil {
		return fail(s.log, "delete user", err)
	}
	if err := s.jwt.Invalidate(ctx, tokenID, expiresAt); err != nil {
		s.log.Warn("failed to revoke token of deleted user", zap.Uint64("user_id", callerID), zap.Error(err))
	}

	s.invalidate(ctx, constants.CacheKeyUsers)
	s.log.Info("user deleted", zap.Uint64("user_id", callerID))
	return nil
}

// List returns active users
func (s *UserService) List(ctx context.Context, callerID uint64) ([]models.User, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	if s.cache == nil {
		users, err := s.repos.Users.List(ctx)
		if err != nil {
			return nil, fail(s.log, "list users", err)
		}
		return users, nil
	}

	users, err := cache.GetOrLoadJSON(s.cache, ctx, constants.CacheKeyUsers, s.opts.CacheTTL,
		func(ctx context.Context) ([]models.User, error) {
			return s.repos.Users.List(ctx)
		})
	if err != nil {
		return nil, fail(s.log, "list users", err)
	}
	return users, nil
}

// ListDeleted returns soft-deleted users. An empty result is NotFound.
func (s *UserService) ListDeleted(ctx context.Context, callerID uint64) ([]models.User, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.repos.Users.ListTrashed(ctx)
	if err != nil {
		return nil, fail(s.log, "list deleted users", err)
	}
	if len(users) == 0 {
		return nil, apierrors.New(apierrors.KindNotFound, "No deleted users found")
	}
	return users, nil
}

// Restore brings back a soft-deleted user found by email. A user that is not
// deleted is rejected before the caller's role is checked.
func (s *UserService) Restore(ctx context.Context, callerID uint64, email string) (*models.User, error) {
	user, err := s.repos.Users.FindByEmailWithTrashed(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fail(s.log, "find user", notFoundAs(err, apierrors.ErrUserNotFound))
	}
	if !user.DeletedAt.Valid {
		return nil, apierrors.New(apierrors.KindNotDeleted, "This user isn't deleted")
	}
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}

	if err := s.repos.Users.Restore(ctx, user.ID); err != nil {
		return nil, fail(s.log, "restore user", err)
	}
	user.DeletedAt = gorm.DeletedAt{}

	s.invalidate(ctx, constants.CacheKeyUsers)
	s.log.Info("user restored", zap.Uint64("user_id", user.ID), zap.Uint64("by", callerID))
	return user, nil
}

// ForceDelete permanently removes a user found by email, deleted or not,
// with its role and annotations. Unfinished tasks assigned to the user go
// back to unassigned Open; completed ones only lose the assignee.
func (s *UserService) ForceDelete(ctx context.Context, callerID uint64, email string) error {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return err
	}

	var (
		userID  uint64
		removed []models.Attachment
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		user, err := r.Users.FindByEmailWithTrashed(ctx, strings.TrimSpace(email))
		if err != nil {
			return notFoundAs(err, apierrors.ErrUserNotFound)
		}
		userID = user.ID

		if err := r.Roles.DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		removed, err = r.Annotations.DeleteForOwner(ctx, models.OwnerUser, user.ID)
		if err != nil {
			return err
		}
		reset, err := r.Tasks.ClearAssignee(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, id := range reset {
			if err := r.History.Append(ctx, id, models.TaskStatusOpen); err != nil {
				return err
			}
		}
		return r.Users.ForceDelete(ctx, user.ID)
	})
	if err != nil {
		return fail(s.log, "force delete user", err)
	}

	removeBlobs(ctx, s.blobs, s.log, removed)
	s.invalidate(ctx,
		constants.CacheKeyUsers,
		constants.CacheKeyRoles,
		constants.CacheKeyTasks,
		constants.CacheKeyComments,
		constants.CacheKeyAttachments,
	)
	s.log.Info("user permanently deleted", zap.Uint64("user_id", userID), zap.Uint64("by", callerID))
	return nil
}
