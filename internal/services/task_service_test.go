package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"github.com/yukikurage/task-lifecycle-api/internal/testutil"
)

func strPtr(s string) *string { return &s }

func (suite *ServiceTestSuite) TestCreateTask_Success() {
	task, err := suite.tasks.Create(suite.ctx, suite.admin.ID, CreateTaskInput{
		Title:       "Ship release",
		Description: "Cut the tag",
		Type:        models.TaskTypeFeature,
		Priority:    models.TaskPriorityHigh,
	})
	suite.Require().NoError(err)
	suite.NotZero(task.ID)
	suite.Equal(models.TaskStatusOpen, task.Status)
	suite.Nil(task.AssignedTo)
	suite.Nil(task.DueDate)
	suite.Empty(suite.history(task.ID))
}

func (suite *ServiceTestSuite) TestCreateTask_NonAdmin() {
	for _, caller := range []*models.User{suite.manager, suite.user} {
		_, err := suite.tasks.Create(suite.ctx, caller.ID, CreateTaskInput{
			Title:    "Nope",
			Type:     models.TaskTypeBug,
			Priority: models.TaskPriorityLow,
		})
		suite.True(errors.Is(err, apierrors.ErrForbidden))
	}
}

func (suite *ServiceTestSuite) TestCreateTask_Validation() {
	testutil.CreateTask(suite.T(), suite.db, "Taken")

	_, err := suite.tasks.Create(suite.ctx, suite.admin.ID, CreateTaskInput{
		Title: "Taken", Type: models.TaskTypeBug, Priority: models.TaskPriorityLow,
	})
	suite.requireKind(err, apierrors.KindValidation)
	suite.Contains(apierrors.From(err).Details, "title")

	_, err = suite.tasks.Create(suite.ctx, suite.admin.ID, CreateTaskInput{
		Title: "X", Type: models.TaskTypeBug, Priority: models.TaskPriorityLow,
	})
	suite.requireKind(err, apierrors.KindValidation)

	_, err = suite.tasks.Create(suite.ctx, suite.admin.ID, CreateTaskInput{
		Title: "Bad enum", Type: "Chore", Priority: "Urgent",
	})
	suite.requireKind(err, apierrors.KindValidation)
	suite.Contains(apierrors.From(err).Details, "type")
	suite.Contains(apierrors.From(err).Details, "priority")
}

func (suite *ServiceTestSuite) TestCreateTask_MissingRoleIsUnauthorized() {
	ghost := testutil.CreateUser(suite.T(), suite.db, "Ghost", "ghost@example.com", "")

	_, err := suite.tasks.Create(suite.ctx, ghost.ID, CreateTaskInput{
		Title: "Ghost task", Type: models.TaskTypeBug, Priority: models.TaskPriorityLow,
	})
	suite.True(errors.Is(err, apierrors.ErrUnauthorized))
}

func (suite *ServiceTestSuite) TestAssign_Success() {
	task := testutil.CreateTask(suite.T(), suite.db, "Assign me")

	assigned, err := suite.tasks.Assign(suite.ctx, suite.admin.ID, task.ID, suite.user.ID, "20-02-2030 09:00")
	suite.Require().NoError(err)
	suite.Require().NotNil(assigned.AssignedTo)
	suite.Equal(suite.user.ID, *assigned.AssignedTo)
	suite.Equal(models.TaskStatusOpen, assigned.Status)
	suite.Require().NotNil(assigned.DueDate)
	suite.True(assigned.DueDate.Equal(time.Date(2030, time.February, 20, 9, 0, 0, 0, time.UTC)))
	suite.Equal([]models.TaskStatus{models.TaskStatusOpen}, suite.history(task.ID))
}

func (suite *ServiceTestSuite) TestAssign_AlreadyAssigned() {
	task := suite.assignedTask("Taken task")

	_, err := suite.tasks.Assign(suite.ctx, suite.admin.ID, task.ID, suite.other.ID, "20-02-2030 09:00")
	suite.True(errors.Is(err, apierrors.ErrAlreadyAssigned))
	suite.Len(suite.history(task.ID), 1)
}

func (suite *ServiceTestSuite) TestAssign_InvalidAssigneeRole() {
	task := testutil.CreateTask(suite.T(), suite.db, "Role check")

	for _, assignee := range []*models.User{suite.admin, suite.manager} {
		_, err := suite.tasks.Assign(suite.ctx, suite.admin.ID, task.ID, assignee.ID, "20-02-2030 09:00")
		suite.True(errors.Is(err, apierrors.ErrInvalidAssigneeRole))
	}
	suite.Empty(suite.history(task.ID))
}

func (suite *ServiceTestSuite) TestAssign_DueDate() {
	task := testutil.CreateTask(suite.T(), suite.db, "Due dates")

	tests := []struct {
		name string
		due  string
		kind apierrors.Kind
	}{
		{"far past", "01-01-2000 00:00", apierrors.KindDueDateInPast},
		{"current minute", "15-01-2030 10:30", apierrors.KindDueDateInPast},
		{"iso format", "2030-02-20 09:00", apierrors.KindInvalidDueDateFormat},
		{"no time", "20-02-2030", apierrors.KindInvalidDueDateFormat},
		{"empty", "", apierrors.KindInvalidDueDateFormat},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.tasks.Assign(suite.ctx, suite.admin.ID, task.ID, suite.user.ID, tt.due)
			suite.requireKind(err, tt.kind)
		})
	}

	reloaded, err := suite.repos.Tasks.FindByID(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Nil(reloaded.AssignedTo)
}

func (suite *ServiceTestSuite) TestAssign_UserNotFound() {
	task := testutil.CreateTask(suite.T(), suite.db, "Nobody")

	_, err := suite.tasks.Assign(suite.ctx, suite.admin.ID, task.ID, 9999, "20-02-2030 09:00")
	suite.True(errors.Is(err, apierrors.ErrUserNotFound))
}

func (suite *ServiceTestSuite) TestAssign_DeletedTaskNotFound() {
	task := testutil.CreateTask(suite.T(), suite.db, "Gone")
	suite.Require().NoError(suite.tasks.Delete(suite.ctx, suite.admin.ID, task.ID))

	_, err := suite.tasks.Assign(suite.ctx, suite.admin.ID, task.ID, suite.user.ID, "20-02-2030 09:00")
	suite.requireKind(err, apierrors.KindNotFound)
}

func (suite *ServiceTestSuite) TestAssign_NonAdmin() {
	task := testutil.CreateTask(suite.T(), suite.db, "Manager try")

	_, err := suite.tasks.Assign(suite.ctx, suite.manager.ID, task.ID, suite.user.ID, "20-02-2030 09:00")
	suite.True(errors.Is(err, apierrors.ErrForbidden))
	suite.Empty(suite.history(task.ID))
}

func (suite *ServiceTestSuite) TestChangeStatus_Workflow() {
	task := suite.assignedTask("Workflow")

	task, err := suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusInProgress)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusInProgress, task.Status)

	task, err = suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusCompleted)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusCompleted, task.Status)
	suite.Require().NotNil(task.DueDate)
	suite.True(task.DueDate.Equal(time.Date(2030, time.January, 15, 10, 30, 0, 0, time.UTC)))

	suite.Equal([]models.TaskStatus{
		models.TaskStatusOpen,
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
	}, suite.history(task.ID))
}

func (suite *ServiceTestSuite) TestChangeStatus_NotAssignee() {
	task := suite.assignedTask("Someone else's")

	_, err := suite.tasks.ChangeStatus(suite.ctx, suite.other.ID, task.ID, models.TaskStatusInProgress)
	suite.requireKind(err, apierrors.KindForbidden)

	_, err = suite.tasks.ChangeStatus(suite.ctx, suite.admin.ID, task.ID, models.TaskStatusInProgress)
	suite.requireKind(err, apierrors.KindForbidden)

	suite.Len(suite.history(task.ID), 1)
}

func (suite *ServiceTestSuite) TestChangeStatus_AssigneeCheckedBeforeState() {
	task := suite.assignedTask("Already started")
	_, err := suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusInProgress)
	suite.Require().NoError(err)

	_, err = suite.tasks.ChangeStatus(suite.ctx, suite.other.ID, task.ID, models.TaskStatusInProgress)
	suite.requireKind(err, apierrors.KindForbidden)
}

func (suite *ServiceTestSuite) TestChangeStatus_InvalidTransition() {
	task := suite.assignedTask("Skip ahead")

	_, err := suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusCompleted)
	suite.True(errors.Is(err, apierrors.ErrInvalidTransition))

	_, err = suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusInProgress)
	suite.Require().NoError(err)
	_, err = suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusInProgress)
	suite.True(errors.Is(err, apierrors.ErrInvalidTransition))

	_, err = suite.tasks.ChangeStatus(suite.ctx, suite.user.ID, task.ID, models.TaskStatusOpen)
	suite.requireKind(err, apierrors.KindValidation)

	suite.Len(suite.history(task.ID), 2)
}

func (suite *ServiceTestSuite) TestChangeStatus_StaleVersion() {
	task := suite.assignedTask("Raced")
	suite.Require().NoError(suite.db.Model(&models.Task{}).Where("id = ?", task.ID).
		Update("version", gorm.Expr("version + 1")).Error)

	err := suite.repos.Tasks.UpdateVersioned(suite.ctx, task, map[string]any{"status": models.TaskStatusInProgress})
	suite.ErrorIs(err, repository.ErrStaleTask)
}

func (suite *ServiceTestSuite) TestUpdate_NoFields() {
	task := testutil.CreateTask(suite.T(), suite.db, "Untouched")

	_, err := suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{})
	suite.True(errors.Is(err, apierrors.ErrNoFieldsProvided))

	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Title: strPtr(""), Priority: strPtr("  ")})
	suite.True(errors.Is(err, apierrors.ErrNoFieldsProvided))
}

func (suite *ServiceTestSuite) TestUpdate_Sparse() {
	task := testutil.CreateTask(suite.T(), suite.db, "Sparse")

	updated, err := suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Priority: strPtr("Low")})
	suite.Require().NoError(err)
	suite.Equal(models.TaskPriorityLow, updated.Priority)
	suite.Equal(task.Title, updated.Title)
	suite.Equal(task.Description, updated.Description)
	suite.Equal(task.Type, updated.Type)
	suite.Equal(task.Status, updated.Status)
	suite.Nil(updated.AssignedTo)
	suite.Empty(suite.history(task.ID))
}

func (suite *ServiceTestSuite) TestUpdate_StatusAppendsHistory() {
	task := testutil.CreateTask(suite.T(), suite.db, "Blocked one")

	updated, err := suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Status: strPtr("Blocked")})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusBlocked, updated.Status)
	suite.Equal([]models.TaskStatus{models.TaskStatusBlocked}, suite.history(task.ID))

	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Status: strPtr("Blocked")})
	suite.Require().NoError(err)
	suite.Len(suite.history(task.ID), 1)
}

func (suite *ServiceTestSuite) TestUpdate_Errors() {
	task := testutil.CreateTask(suite.T(), suite.db, "Errors")
	testutil.CreateTask(suite.T(), suite.db, "Other title")

	_, err := suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{DueDate: strPtr("tomorrow")})
	suite.requireKind(err, apierrors.KindInvalidDueDateFormat)

	missing := uint64(9999)
	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{AssignedTo: &missing})
	suite.requireKind(err, apierrors.KindUserNotFound)

	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Title: strPtr("Other title")})
	suite.requireKind(err, apierrors.KindValidation)

	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Priority: strPtr("Urgent")})
	suite.requireKind(err, apierrors.KindValidation)

	_, err = suite.tasks.Update(suite.ctx, suite.user.ID, task.ID, UpdateTaskInput{Priority: strPtr("Low")})
	suite.requireKind(err, apierrors.KindForbidden)

	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, 9999, UpdateTaskInput{Priority: strPtr("Low")})
	suite.requireKind(err, apierrors.KindNotFound)

	// keeping its own title is allowed
	_, err = suite.tasks.Update(suite.ctx, suite.admin.ID, task.ID, UpdateTaskInput{Title: strPtr("Errors")})
	suite.NoError(err)
}

func (suite *ServiceTestSuite) TestDeleteAndRestore() {
	task := testutil.CreateTask(suite.T(), suite.db, "Trash me")

	suite.requireKind(suite.tasks.Delete(suite.ctx, suite.user.ID, task.ID), apierrors.KindForbidden)
	suite.Require().NoError(suite.tasks.Delete(suite.ctx, suite.admin.ID, task.ID))

	_, err := suite.tasks.Get(suite.ctx, task.ID)
	suite.requireKind(err, apierrors.KindNotFound)
	suite.requireKind(suite.tasks.Delete(suite.ctx, suite.admin.ID, task.ID), apierrors.KindNotFound)

	deleted, err := suite.tasks.ListDeleted(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Require().Len(deleted, 1)
	suite.Equal(task.ID, deleted[0].ID)

	_, err = suite.tasks.Restore(suite.ctx, suite.user.ID, task.ID)
	suite.requireKind(err, apierrors.KindForbidden)

	restored, err := suite.tasks.Restore(suite.ctx, suite.admin.ID, task.ID)
	suite.Require().NoError(err)
	suite.False(restored.DeletedAt.Valid)

	_, err = suite.tasks.Get(suite.ctx, task.ID)
	suite.NoError(err)
}

func (suite *ServiceTestSuite) TestRestore_NotDeletedRegardlessOfRole() {
	task := testutil.CreateTask(suite.T(), suite.db, "Alive")

	for _, caller := range []*models.User{suite.admin, suite.manager, suite.user} {
		_, err := suite.tasks.Restore(suite.ctx, caller.ID, task.ID)
		suite.requireKind(err, apierrors.KindNotDeleted)
	}

	_, err := suite.tasks.Restore(suite.ctx, suite.admin.ID, 9999)
	suite.requireKind(err, apierrors.KindNotFound)
}

func (suite *ServiceTestSuite) TestForceDelete_Cascades() {
	task := suite.assignedTask("Purge")

	_, err := suite.annotations.AddTaskComment(suite.ctx, suite.manager.ID, task.ID, "note")
	suite.Require().NoError(err)
	attachment, err := suite.annotations.AddTaskAttachment(suite.ctx, suite.admin.ID, task.ID, Upload{Name: "a.png", Body: pngReader()})
	suite.Require().NoError(err)
	suite.Require().True(suite.blobExists(attachment.FilePath))

	suite.Require().NoError(suite.tasks.Delete(suite.ctx, suite.admin.ID, task.ID))
	suite.Require().NoError(suite.tasks.ForceDelete(suite.ctx, suite.admin.ID, task.ID))

	_, err = suite.repos.Tasks.FindWithTrashed(suite.ctx, task.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
	suite.Empty(suite.history(task.ID))

	comments, err := suite.repos.Annotations.ListCommentsFor(suite.ctx, models.OwnerTask, task.ID)
	suite.Require().NoError(err)
	suite.Empty(comments)
	attachments, err := suite.repos.Annotations.ListAttachmentsFor(suite.ctx, models.OwnerTask, task.ID)
	suite.Require().NoError(err)
	suite.Empty(attachments)
	suite.False(suite.blobExists(attachment.FilePath))

	suite.requireKind(suite.tasks.ForceDelete(suite.ctx, suite.admin.ID, task.ID), apierrors.KindNotFound)
}

func (suite *ServiceTestSuite) TestList_CacheIsInvalidatedOnWrite() {
	testutil.CreateTask(suite.T(), suite.db, "First")

	tasks, err := suite.tasks.List(suite.ctx, repository.TaskFilter{})
	suite.Require().NoError(err)
	suite.Len(tasks, 1)

	// rows written behind the service's back are not seen until a write evicts
	testutil.CreateTask(suite.T(), suite.db, "Second")
	tasks, err = suite.tasks.List(suite.ctx, repository.TaskFilter{})
	suite.Require().NoError(err)
	suite.Len(tasks, 1)

	_, err = suite.tasks.Create(suite.ctx, suite.admin.ID, CreateTaskInput{
		Title: "Third", Type: models.TaskTypeBug, Priority: models.TaskPriorityHigh,
	})
	suite.Require().NoError(err)
	tasks, err = suite.tasks.List(suite.ctx, repository.TaskFilter{})
	suite.Require().NoError(err)
	suite.Len(tasks, 3)
}

func (suite *ServiceTestSuite) TestList_Filters() {
	testutil.CreateTask(suite.T(), suite.db, "Medium one")
	_, err := suite.tasks.Create(suite.ctx, suite.admin.ID, CreateTaskInput{
		Title: "High one", Type: models.TaskTypeBug, Priority: models.TaskPriorityHigh,
	})
	suite.Require().NoError(err)

	high := models.TaskPriorityHigh
	tasks, err := suite.tasks.List(suite.ctx, repository.TaskFilter{Priority: &high})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Equal("High one", tasks[0].Title)

	inProgress := models.TaskStatusInProgress
	tasks, err = suite.tasks.List(suite.ctx, repository.TaskFilter{Status: &inProgress})
	suite.Require().NoError(err)
	suite.Empty(tasks)

	bad := models.TaskPriority("Urgent")
	_, err = suite.tasks.List(suite.ctx, repository.TaskFilter{Priority: &bad})
	suite.requireKind(err, apierrors.KindValidation)
}

func (suite *ServiceTestSuite) TestListMineAndHistory() {
	task := suite.assignedTask("Mine")
	testutil.CreateTask(suite.T(), suite.db, "Not mine")

	mine, err := suite.tasks.ListMine(suite.ctx, suite.user.ID)
	suite.Require().NoError(err)
	suite.Require().Len(mine, 1)
	suite.Equal(task.ID, mine[0].ID)

	none, err := suite.tasks.ListMine(suite.ctx, suite.other.ID)
	suite.Require().NoError(err)
	suite.Empty(none)

	updates, err := suite.tasks.History(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Len(updates, 1)

	_, err = suite.tasks.History(suite.ctx, 9999)
	suite.requireKind(err, apierrors.KindNotFound)
}
