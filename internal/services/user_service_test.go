package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/task-lifecycle-api/internal/auth"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/testutil"
)

func (suite *ServiceTestSuite) TestRegister_RoleFromEmail() {
	tests := []struct {
		email string
		role  models.RoleName
	}{
		{"alice@admin.example.org", models.RoleAdmin},
		{"bob@manager.x", models.RoleManager},
		{"carol@x.com", models.RoleUser},
		{"Eve@ADMIN.io", models.RoleAdmin},
	}
	for _, tt := range tests {
		suite.Run(tt.email, func() {
			user, err := suite.users.Register(suite.ctx, RegisterInput{
				Name:     "Someone",
				Email:    tt.email,
				Password: "password123",
			})
			suite.Require().NoError(err)
			suite.Require().NotNil(user.Role)
			suite.Equal(tt.role, user.Role.Name)

			stored, err := suite.repos.Roles.FindByUserID(suite.ctx, user.ID)
			suite.Require().NoError(err)
			suite.Equal(tt.role, stored.Name)
		})
	}
}

func (suite *ServiceTestSuite) TestRegister_Validation() {
	_, err := suite.users.Register(suite.ctx, RegisterInput{Name: "", Email: "not-an-email", Password: "short"})
	suite.requireKind(err, apierrors.KindValidation)
	details := apierrors.From(err).Details
	suite.Contains(details, "name")
	suite.Contains(details, "email")
	suite.Contains(details, "password")

	_, err = suite.users.Register(suite.ctx, RegisterInput{Name: "Dup", Email: suite.user.Email, Password: "password123"})
	suite.requireKind(err, apierrors.KindValidation)
	suite.Contains(apierrors.From(err).Details, "email")
}

func (suite *ServiceTestSuite) TestRegister_EmailOfDeletedUserIsTaken() {
	suite.Require().NoError(suite.users.DeleteSelf(suite.ctx, suite.other.ID, "jti", suite.now.Add(time.Hour)))

	_, err := suite.users.Register(suite.ctx, RegisterInput{Name: "Dup", Email: suite.other.Email, Password: "password123"})
	suite.requireKind(err, apierrors.KindValidation)
}

func (suite *ServiceTestSuite) TestLoginAndLogout() {
	session, err := suite.users.Login(suite.ctx, suite.user.Email, testutil.Password)
	suite.Require().NoError(err)
	suite.NotEmpty(session.Token)
	suite.Require().NotNil(session.User.Role)
	suite.Equal(models.RoleUser, session.User.Role.Name)

	claims, err := suite.jwt.Parse(suite.ctx, session.Token)
	suite.Require().NoError(err)
	suite.Equal(suite.user.ID, claims.UID)

	suite.Require().NoError(suite.users.Logout(suite.ctx, claims.ID, claims.ExpiresAt.Time))
	_, err = suite.jwt.Parse(suite.ctx, session.Token)
	suite.ErrorIs(err, auth.ErrRevokedToken)
}

func (suite *ServiceTestSuite) TestLogin_InvalidCredentials() {
	_, err := suite.users.Login(suite.ctx, suite.user.Email, "wrong-password")
	suite.True(errors.Is(err, apierrors.ErrUnauthorized))

	_, err = suite.users.Login(suite.ctx, "nobody@example.com", testutil.Password)
	suite.True(errors.Is(err, apierrors.ErrUnauthorized))
}

func (suite *ServiceTestSuite) TestProfile() {
	user, err := suite.users.Profile(suite.ctx, suite.manager.ID)
	suite.Require().NoError(err)
	suite.Equal(suite.manager.Email, user.Email)
	suite.Require().NotNil(user.Role)
	suite.Equal(models.RoleManager, user.Role.Name)

	_, err = suite.users.Profile(suite.ctx, 9999)
	suite.requireKind(err, apierrors.KindUserNotFound)
}

func (suite *ServiceTestSuite) TestUpdateProfile() {
	name := "Caroline"
	updated, err := suite.users.UpdateProfile(suite.ctx, suite.user.ID, suite.user.ID, UpdateProfileInput{Name: &name})
	suite.Require().NoError(err)
	suite.Equal("Caroline", updated.Name)

	password := "new-password"
	_, err = suite.users.UpdateProfile(suite.ctx, suite.admin.ID, suite.user.ID, UpdateProfileInput{Password: &password})
	suite.Require().NoError(err)
	_, err = suite.users.Login(suite.ctx, suite.user.Email, password)
	suite.NoError(err)

	_, err = suite.users.UpdateProfile(suite.ctx, suite.other.ID, suite.user.ID, UpdateProfileInput{Name: &name})
	suite.requireKind(err, apierrors.KindForbidden)

	_, err = suite.users.UpdateProfile(suite.ctx, suite.user.ID, suite.user.ID, UpdateProfileInput{})
	suite.True(errors.Is(err, apierrors.ErrNoFieldsProvided))

	short := "short"
	_, err = suite.users.UpdateProfile(suite.ctx, suite.user.ID, suite.user.ID, UpdateProfileInput{Password: &short})
	suite.requireKind(err, apierrors.KindValidation)

	_, err = suite.users.UpdateProfile(suite.ctx, suite.admin.ID, 9999, UpdateProfileInput{Name: &name})
	suite.requireKind(err, apierrors.KindUserNotFound)
}

func (suite *ServiceTestSuite) TestDeleteSelfAndRestore() {
	_, err := suite.users.ListDeleted(suite.ctx, suite.admin.ID)
	suite.requireKind(err, apierrors.KindNotFound)

	_, err = suite.users.Restore(suite.ctx, suite.user.ID, suite.other.Email)
	suite.requireKind(err, apierrors.KindNotDeleted)

	suite.Require().NoError(suite.users.DeleteSelf(suite.ctx, suite.other.ID, "jti-1", suite.now.Add(time.Hour)))
	_, err = suite.users.Profile(suite.ctx, suite.other.ID)
	suite.requireKind(err, apierrors.KindUserNotFound)
	_, err = suite.users.Login(suite.ctx, suite.other.Email, testutil.Password)
	suite.requireKind(err, apierrors.KindUnauthorized)

	deleted, err := suite.users.ListDeleted(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Require().Len(deleted, 1)
	suite.Equal(suite.other.ID, deleted[0].ID)

	_, err = suite.users.Restore(suite.ctx, suite.user.ID, suite.other.Email)
	suite.requireKind(err, apierrors.KindForbidden)

	restored, err := suite.users.Restore(suite.ctx, suite.admin.ID, suite.other.Email)
	suite.Require().NoError(err)
	suite.False(restored.DeletedAt.Valid)

	_, err = suite.users.Login(suite.ctx, suite.other.Email, testutil.Password)
	suite.NoError(err)

	_, err = suite.users.Restore(suite.ctx, suite.admin.ID, "nobody@example.com")
	suite.requireKind(err, apierrors.KindUserNotFound)
}

func (suite *ServiceTestSuite) TestListUsers() {
	users, err := suite.users.List(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Len(users, 4)

	_, err = suite.users.List(suite.ctx, suite.manager.ID)
	suite.requireKind(err, apierrors.KindForbidden)

	_, err = suite.users.Register(suite.ctx, RegisterInput{Name: "New", Email: "new@example.com", Password: "password123"})
	suite.Require().NoError(err)
	users, err = suite.users.List(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Len(users, 5)
}

func (suite *ServiceTestSuite) TestForceDeleteUser_Cascades() {
	task := suite.assignedTask("Orphaned")
	_, err := suite.annotations.AddUserComment(suite.ctx, suite.manager.ID, suite.user.ID, "reliable")
	suite.Require().NoError(err)
	attachment, err := suite.annotations.AddUserAttachment(suite.ctx, suite.admin.ID, suite.user.ID, Upload{Name: "cv.png", Body: pngReader()})
	suite.Require().NoError(err)

	suite.requireKind(suite.users.ForceDelete(suite.ctx, suite.manager.ID, suite.user.Email), apierrors.KindForbidden)
	suite.Require().NoError(suite.users.ForceDelete(suite.ctx, suite.admin.ID, suite.user.Email))

	_, err = suite.repos.Users.FindByEmailWithTrashed(suite.ctx, suite.user.Email)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
	_, err = suite.repos.Roles.FindByUserID(suite.ctx, suite.user.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)

	reloaded, err := suite.repos.Tasks.FindByID(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Nil(reloaded.AssignedTo)
	suite.Equal(models.TaskStatusOpen, reloaded.Status)
	suite.Nil(reloaded.DueDate)
	suite.Equal([]models.TaskStatus{models.TaskStatusOpen, models.TaskStatusOpen}, suite.history(task.ID))

	comments, err := suite.repos.Annotations.ListCommentsFor(suite.ctx, models.OwnerUser, suite.user.ID)
	suite.Require().NoError(err)
	suite.Empty(comments)
	suite.False(suite.blobExists(attachment.FilePath))

	suite.requireKind(suite.users.ForceDelete(suite.ctx, suite.admin.ID, suite.user.Email), apierrors.KindUserNotFound)
}
