package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"gorm.io/gorm"
)

// ErrStaleTask is returned by a versioned update when the task changed since
// it was read.
var ErrStaleTask = errors.New("task repository: task was modified concurrently")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// WithTx returns a repository bound to tx
	WithTx(tx *gorm.DB) TaskRepository

	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds an active task by ID
	FindByID(ctx context.Context, id uint64) (*models.Task, error)

	// FindWithTrashed finds a task by ID whether or not it is soft-deleted
	FindWithTrashed(ctx context.Context, id uint64) (*models.Task, error)

	// List retrieves active tasks matching the filter
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// ListTrashed retrieves soft-deleted tasks
	ListTrashed(ctx context.Context) ([]models.Task, error)

	// ListAssignedTo retrieves active tasks assigned to a user
	ListAssignedTo(ctx context.Context, userID uint64) ([]models.Task, error)

	// TitleTaken reports whether another task already uses the title
	TitleTaken(ctx context.Context, title string, excludeID uint64) (bool, error)

	// UpdateVersioned applies fields if the task is still at task.Version
	// and reloads task. Returns ErrStaleTask otherwise.
	UpdateVersioned(ctx context.Context, task *models.Task, fields map[string]any) error

	// SoftDelete marks a task deleted
	SoftDelete(ctx context.Context, id uint64) error

	// Restore clears the soft-delete mark
	Restore(ctx context.Context, id uint64) error

	// ForceDelete permanently removes a task and its status history
	ForceDelete(ctx context.Context, id uint64) error

	// ClearAssignee unassigns every task, deleted or not, from a user and
	// returns the unfinished tasks it reset to Open
	ClearAssignee(ctx context.Context, userID uint64) ([]uint64, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Priority *models.TaskPriority
	Status   *models.TaskStatus
}

// Empty reports whether no filter is set.
func (f TaskFilter) Empty() bool {
	return f.Priority == nil && f.Status == nil
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository

	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds an active user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds an active user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByEmailWithTrashed finds a user by email whether or not it is soft-deleted
	FindByEmailWithTrashed(ctx context.Context, email string) (*models.User, error)

	// EmailTaken reports whether any user, deleted or not, has the email
	EmailTaken(ctx context.Context, email string) (bool, error)

	List(ctx context.Context) ([]models.User, error)
	ListTrashed(ctx context.Context) ([]models.User, error)

	// Update writes the given columns
	Update(ctx context.Context, user *models.User, fields map[string]any) error

	SoftDelete(ctx context.Context, id uint64) error
	Restore(ctx context.Context, id uint64) error
	ForceDelete(ctx context.Context, id uint64) error
}

// RoleRepository defines the interface for role data access
type RoleRepository interface {
	WithTx(tx *gorm.DB) RoleRepository

	Create(ctx context.Context, role *models.Role) error

	// FindByUserID finds the role bound to a user
	FindByUserID(ctx context.Context, userID uint64) (*models.Role, error)

	FindByID(ctx context.Context, id uint64) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Delete(ctx context.Context, id uint64) error
	DeleteByUserID(ctx context.Context, userID uint64) error
}

// StatusHistoryRepository stores the append-only task status history
type StatusHistoryRepository interface {
	WithTx(tx *gorm.DB) StatusHistoryRepository

	// Append records a task entering status
	Append(ctx context.Context, taskID uint64, status models.TaskStatus) error

	// ListForTask returns a task's history, oldest first
	ListForTask(ctx context.Context, taskID uint64) ([]models.TaskStatusUpdate, error)
}

// AnnotationRepository stores comments and attachments for any owner
type AnnotationRepository interface {
	WithTx(tx *gorm.DB) AnnotationRepository

	CreateComment(ctx context.Context, comment *models.Comment) error
	FindComment(ctx context.Context, id uint64) (*models.Comment, error)
	ListComments(ctx context.Context) ([]models.Comment, error)
	ListCommentsFor(ctx context.Context, ownerType models.OwnerType, ownerID uint64) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id uint64) error

	CreateAttachment(ctx context.Context, attachment *models.Attachment) error
	FindAttachment(ctx context.Context, id uint64) (*models.Attachment, error)
	ListAttachments(ctx context.Context) ([]models.Attachment, error)
	ListAttachmentsFor(ctx context.Context, ownerType models.OwnerType, ownerID uint64) ([]models.Attachment, error)
	DeleteAttachment(ctx context.Context, id uint64) error

	// DeleteForOwner removes every comment and attachment of an owner and
	// returns the removed attachments.
	DeleteForOwner(ctx context.Context, ownerType models.OwnerType, ownerID uint64) ([]models.Attachment, error)
}

// Set bundles the repositories a service needs so they can be rebound to
// one transaction together.
type Set struct {
	Tasks       TaskRepository
	Users       UserRepository
	Roles       RoleRepository
	History     StatusHistoryRepository
	Annotations AnnotationRepository
}

// NewSet creates GORM repositories over db
func NewSet(db *gorm.DB) Set {
	return Set{
		Tasks:       NewTaskRepository(db),
		Users:       NewUserRepository(db),
		Roles:       NewRoleRepository(db),
		History:     NewStatusHistoryRepository(db),
		Annotations: NewAnnotationRepository(db),
	}
}

// WithTx rebinds every repository in the set to tx
func (s Set) WithTx(tx *gorm.DB) Set {
	return Set{
		Tasks:       s.Tasks.WithTx(tx),
		Users:       s.Users.WithTx(tx),
		Roles:       s.Roles.WithTx(tx),
		History:     s.History.WithTx(tx),
		Annotations: s.Annotations.WithTx(tx),
	}
}
