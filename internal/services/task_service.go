package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"github.com/yukikurage/task-lifecycle-api/internal/storage"
)

// TaskService handles task business logic
type TaskService struct {
	db    *gorm.DB
	repos repository.Set
	authz *Authorizer
	cache *cache.Cache
	blobs storage.BlobStore
	opts  Options
	log   *zap.Logger
	now   func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(db *gorm.DB, repos repository.Set, authz *Authorizer, c *cache.Cache, blobs storage.BlobStore, opts Options) *TaskService {
	opts = opts.withDefaults()
	return &TaskService{
		db:    db,
		repos: repos,
		authz: authz,
		cache: c,
		blobs: blobs,
		opts:  opts,
		log:   opts.Logger.Named("tasks"),
		now:   time.Now,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Type        models.TaskType
	Priority    models.TaskPriority
}

// UpdateTaskInput is a sparse update; nil and blank fields are ignored.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *string
	Type        *string
	Status      *string
	AssignedTo  *uint64
	DueDate     *string
}

// ParseDueDate parses s as dd-mm-yyyy hh:mm in the service's timezone.
func (s *TaskService) ParseDueDate(v string) (time.Time, error) {
	t, err := time.ParseInLocation(constants.DueDateLayout, strings.TrimSpace(v), s.opts.Location)
	if err != nil {
		return time.Time{}, apierrors.ErrInvalidDueDateFormat
	}
	return t, nil
}

func (s *TaskService) invalidate(ctx context.Context, keys ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, keys...)
	}
}

// List returns active tasks matching the filter. The unfiltered list is
// served from the cache.
func (s *TaskService) List(ctx context.Context, filter repository.TaskFilter) ([]models.Task, error) {
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, apierrors.Validation("The selected priority is invalid.", map[string]string{"priority": "must be one of Low, Medium, High"})
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apierrors.Validation("The selected status is invalid.", map[string]string{"status": "must be one of Open, In Progress, Completed, Blocked"})
	}

	if !filter.Empty() || s.cache == nil {
		tasks, err := s.repos.Tasks.List(ctx, filter)
		if err != nil {
			return nil, fail(s.log, "list tasks", err)
		}
		return tasks, nil
	}

	tasks, err := cache.GetOrLoadJSON(s.cache, ctx, constants.CacheKeyTasks, s.opts.CacheTTL,
		func(ctx context.Context) ([]models.Task, error) {
			return s.repos.Tasks.List(ctx, filter)
		})
	if err != nil {
		return nil, fail(s.log, "list tasks", err)
	}
	return tasks, nil
}

// Get returns an active task
func (s *TaskService) Get(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := s.repos.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fail(s.log, "find task", notFoundAs(err, apierrors.ErrNotFound))
	}
	return task, nil
}

// ListMine returns the active tasks assigned to the caller
func (s *TaskService) ListMine(ctx context.Context, callerID uint64) ([]models.Task, error) {
	tasks, err := s.repos.Tasks.ListAssignedTo(ctx, callerID)
	if err != nil {
		return nil, fail(s.log, "list assigned tasks", err)
	}
	return tasks, nil
}

// History returns the status history of an active task, oldest first
func (s *TaskService) History(ctx context.Context, taskID uint64) ([]models.TaskStatusUpdate, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	updates, err := s.repos.History.ListForTask(ctx, taskID)
	if err != nil {
		return nil, fail(s.log, "list status history", err)
	}
	return updates, nil
}

// ListDeleted returns soft-deleted tasks
func (s *TaskService) ListDeleted(ctx context.Context, callerID uint64) ([]models.Task, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	tasks, err := s.repos.Tasks.ListTrashed(ctx)
	if err != nil {
		return nil, fail(s.log, "list deleted tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) validateTitle(ctx context.Context, tasks repository.TaskRepository, title string, excludeID uint64) error {
	if n := runeLen(title); n < constants.MinTaskTitleLength || n > constants.MaxTaskTitleLength {
		return apierrors.Validation("The title field is invalid.", map[string]string{
			"title": fmt.Sprintf("must be between %d and %d characters", constants.MinTaskTitleLength, constants.MaxTaskTitleLength),
		})
	}
	taken, err := tasks.TitleTaken(ctx, title, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apierrors.Validation("The title has already been taken.", map[string]string{"title": "has already been taken"})
	}
	return nil
}

func validateDescription(desc string) error {
	if runeLen(desc) > constants.MaxTaskDescriptionLength {
		return apierrors.Validation("The description field is invalid.", map[string]string{
			"description": fmt.Sprintf("must not be greater than %d characters", constants.MaxTaskDescriptionLength),
		})
	}
	return nil
}

// Create creates a new open, unassigned task
func (s *TaskService) Create(ctx context.Context, callerID uint64, input CreateTaskInput) (*models.Task, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	details := map[string]string{}
	if !input.Type.Valid() {
		details["type"] = "must be one of Bug, Feature, Improvement"
	}
	if !input.Priority.Valid() {
		details["priority"] = "must be one of Low, Medium, High"
	}
	if len(details) > 0 {
		return nil, apierrors.Validation("The given data was invalid.", details)
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: input.Description,
		Type:        input.Type,
		Priority:    input.Priority,
		Status:      models.TaskStatusOpen,
		Version:     1,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.repos.Tasks.WithTx(tx)
		if err := s.validateTitle(ctx, tasks, title, 0); err != nil {
			return err
		}
		return tasks.Create(ctx, task)
	})
	if err != nil {
		return nil, fail(s.log, "create task", err)
	}

	s.invalidate(ctx, constants.CacheKeyTasks)
	s.log.Info("task created", zap.Uint64("task_id", task.ID), zap.Uint64("by", callerID))
	return task, nil
}

// Assign gives an unassigned task to a user with a future due date. The
// checks, the update and the history entry commit together.
func (s *TaskService) Assign(ctx context.Context, callerID, taskID, assigneeID uint64, dueDate string) (*models.Task, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}

	var out *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)

		task, err := r.Tasks.FindByID(ctx, taskID)
		if err != nil {
			return notFoundAs(err, apierrors.ErrNotFound)
		}
		if task.AssignedTo != nil {
			return apierrors.ErrAlreadyAssigned
		}

		if _, err := r.Users.FindByID(ctx, assigneeID); err != nil {
			return notFoundAs(err, apierrors.ErrUserNotFound)
		}

		role, err := r.Roles.FindByUserID(ctx, assigneeID)
		switch {
		case err == nil:
			if role.Name != models.RoleUser {
				return apierrors.ErrInvalidAssigneeRole
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		due, err := s.ParseDueDate(dueDate)
		if err != nil {
			return err
		}
		if !due.After(s.now()) {
			return apierrors.ErrDueDateInPast
		}

		err = r.Tasks.UpdateVersioned(ctx, task, map[string]any{
			"assigned_to": assigneeID,
			"status":      models.TaskStatusOpen,
			"due_date":    due,
		})
		if errors.Is(err, repository.ErrStaleTask) {
			return apierrors.ErrAlreadyAssigned
		}
		if err != nil {
			return err
		}

		if err := r.History.Append(ctx, task.ID, models.TaskStatusOpen); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, fail(s.log, "assign task", err)
	}

	s.invalidate(ctx, constants.CacheKeyTasks)
	statusTransitions.WithLabelValues(string(models.TaskStatusOpen), "assign").Inc()
	s.log.Info("task assigned",
		zap.Uint64("task_id", taskID),
		zap.Uint64("assignee", assigneeID),
		zap.Uint64("by", callerID))
	return out, nil
}

// ChangeStatus moves a task along Open -> In Progress -> Completed. Only the
// assignee may move it.
func (s *TaskService) ChangeStatus(ctx context.Context, callerID, taskID uint64, target models.TaskStatus) (*models.Task, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleUser); err != nil {
		return nil, err
	}

	var from models.TaskStatus
	switch target {
	case models.TaskStatusInProgress:
		from = models.TaskStatusOpen
	case models.TaskStatusCompleted:
		from = models.TaskStatusInProgress
	default:
		return nil, apierrors.Validation("The selected status is invalid.", map[string]string{
			"status": "must be one of In Progress, Completed",
		})
	}

	var out *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)

		task, err := r.Tasks.FindByID(ctx, taskID)
		if err != nil {
			return notFoundAs(err, apierrors.ErrNotFound)
		}
		if !task.IsAssignedTo(callerID) {
			return apierrors.New(apierrors.KindForbidden, "You are not assigned to this task")
		}
		if task.Status != from {
			return apierrors.New(apierrors.KindInvalidTransition,
				fmt.Sprintf("Task must be %s to move to %s", from, target))
		}

		fields := map[string]any{"status": target}
		if target == models.TaskStatusCompleted {
			fields["due_date"] = s.now().In(s.opts.Location).Truncate(time.Minute)
		}

		err = r.Tasks.UpdateVersioned(ctx, task, fields)
		if errors.Is(err, repository.ErrStaleTask) {
			return apierrors.New(apierrors.KindInvalidTransition, "Task status changed concurrently")
		}
		if err != nil {
			return err
		}

		if err := r.History.Append(ctx, task.ID, target); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, fail(s.log, "change task status", err)
	}

	s.invalidate(ctx, constants.CacheKeyTasks)
	statusTransitions.WithLabelValues(string(target), "workflow").Inc()
	s.log.Info("task status changed",
		zap.Uint64("task_id", taskID),
		zap.String("from", string(from)),
		zap.String("to", string(target)))
	return out, nil
}

// Update applies a sparse set of fields without the workflow rules. A
// status change here still appends to the history.
func (s *TaskService) Update(ctx context.Context, callerID, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}

	title := blank(input.Title)
	desc := blank(input.Description)
	priority := blank(input.Priority)
	typ := blank(input.Type)
	status := blank(input.Status)
	dueDate := blank(input.DueDate)

	if title == nil && desc == nil && priority == nil && typ == nil &&
		status == nil && input.AssignedTo == nil && dueDate == nil {
		return nil, apierrors.ErrNoFieldsProvided
	}

	details := map[string]string{}
	if priority != nil && !models.TaskPriority(*priority).Valid() {
		details["priority"] = "must be one of Low, Medium, High"
	}
	if typ != nil && !models.TaskType(*typ).Valid() {
		details["type"] = "must be one of Bug, Feature, Improvement"
	}
	if status != nil && !models.TaskStatus(*status).Valid() {
		details["status"] = "must be one of Open, In Progress, Completed, Blocked"
	}
	if len(details) > 0 {
		return nil, apierrors.Validation("The given data was invalid.", details)
	}
	if desc != nil {
		if err := validateDescription(*desc); err != nil {
			return nil, err
		}
	}

	var (
		out           *models.Task
		statusChanged bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)

		task, err := r.Tasks.FindByID(ctx, taskID)
		if err != nil {
			return notFoundAs(err, apierrors.ErrNotFound)
		}

		fields := map[string]any{}
		if title != nil {
			if err := s.validateTitle(ctx, r.Tasks, *title, task.ID); err != nil {
				return err
			}
			fields["title"] = *title
		}
		if desc != nil {
			fields["description"] = *desc
		}
		if priority != nil {
			fields["priority"] = models.TaskPriority(*priority)
		}
		if typ != nil {
			fields["type"] = models.TaskType(*typ)
		}
		if input.AssignedTo != nil {
			if _, err := r.Users.FindByID(ctx, *input.AssignedTo); err != nil {
				return notFoundAs(err, apierrors.ErrUserNotFound)
			}
			fields["assigned_to"] = *input.AssignedTo
		}
		if dueDate != nil {
			due, err := s.ParseDueDate(*dueDate)
			if err != nil {
				return err
			}
			fields["due_date"] = due
		}
		if status != nil {
			fields["status"] = models.TaskStatus(*status)
			statusChanged = models.TaskStatus(*status) != task.Status
		}

		if err := r.Tasks.UpdateVersioned(ctx, task, fields); err != nil {
			return err
		}
		if statusChanged {
			if err := r.History.Append(ctx, task.ID, task.Status); err != nil {
				return err
			}
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, fail(s.log, "update task", err)
	}

	s.invalidate(ctx, constants.CacheKeyTasks)
	if statusChanged {
		statusTransitions.WithLabelValues(string(out.Status), "update").Inc()
	}
	s.log.Info("task updated", zap.Uint64("task_id", taskID), zap.Uint64("by", callerID))
	return out, nil
}

// Delete soft-deletes an active task
func (s *TaskService) Delete(ctx context.Context, callerID, taskID uint64) error {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return err
	}
	if _, err := s.repos.Tasks.FindByID(ctx, taskID); err != nil {
		return fail(s.log, "find task", notFoundAs(err, apierrors.ErrNotFound))
	}
	if err := s.repos.Tasks.SoftDelete(ctx, taskID); err != nil {
		return fail(s.log, "delete task", err)
	}

	s.invalidate(ctx, constants.CacheKeyTasks)
	s.log.Info("task deleted", zap.Uint64("task_id", taskID), zap.Uint64("by", callerID))
	return nil
}

// Restore brings back a soft-deleted task. A task that is not deleted is
// rejected before the caller's role is checked.
func (s *TaskService) Restore(ctx context.Context, callerID, taskID uint64) (*models.Task, error) {
	task, err := s.repos.Tasks.FindWithTrashed(ctx, taskID)
	if err != nil {
		return nil, fail(s.log, "find task", notFoundAs(err, apierrors.ErrNotFound))
	}
	if !task.DeletedAt.Valid {
		return nil, apierrors.New(apierrors.KindNotDeleted, "This task isn't deleted")
	}
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}

	if err := s.repos.Tasks.Restore(ctx, taskID); err != nil {
		return nil, fail(s.log, "restore task", err)
	}
	task.DeletedAt = gorm.DeletedAt{}

	s.invalidate(ctx, constants.CacheKeyTasks)
	s.log.Info("task restored", zap.Uint64("task_id", taskID), zap.Uint64("by", callerID))
	return task, nil
}

// ForceDelete permanently removes a task, deleted or not, together with its
// history, comments and attachments.
func (s *TaskService) ForceDelete(ctx context.Context, callerID, taskID uint64) error {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return err
	}

	var removed []models.Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		if _, err := r.Tasks.FindWithTrashed(ctx, taskID); err != nil {
			return notFoundAs(err, apierrors.ErrNotFound)
		}
		var err error
		removed, err = r.Annotations.DeleteForOwner(ctx, models.OwnerTask, taskID)
		if err != nil {
			return err
		}
		return r.Tasks.ForceDelete(ctx, taskID)
	})
	if err != nil {
		return fail(s.log, "force delete task", err)
	}

	removeBlobs(ctx, s.blobs, s.log, removed)
	s.invalidate(ctx, constants.CacheKeyTasks, constants.CacheKeyComments, constants.CacheKeyAttachments)
	s.log.Info("task permanently deleted", zap.Uint64("task_id", taskID), zap.Uint64("by", callerID))
	return nil
}
