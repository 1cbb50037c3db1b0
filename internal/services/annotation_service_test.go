package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/testutil"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1}

func pngReader() io.Reader {
	return bytes.NewReader(pngBytes)
}

func (suite *ServiceTestSuite) blobExists(ref string) bool {
	suite.T().Helper()
	ok, err := afero.Exists(suite.blobs.Fs(), "/"+path.Base(ref))
	suite.Require().NoError(err)
	return ok
}

// MockBlobStore is a mock implementation of storage.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Store(ctx context.Context, ext string, r io.Reader) (string, error) {
	args := m.Called(ctx, ext, r)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Remove(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (suite *ServiceTestSuite) TestAddComment() {
	task := testutil.CreateTask(suite.T(), suite.db, "Discussed")

	comment, err := suite.annotations.AddTaskComment(suite.ctx, suite.manager.ID, task.ID, "  looks good  ")
	suite.Require().NoError(err)
	suite.Equal("looks good", comment.Content)
	suite.Equal(models.OwnerTask, comment.OwnerType)
	suite.Equal(task.ID, comment.OwnerID)

	comment, err = suite.annotations.AddUserComment(suite.ctx, suite.admin.ID, suite.user.ID, "on time")
	suite.Require().NoError(err)
	suite.Equal(models.OwnerUser, comment.OwnerType)

	_, err = suite.annotations.AddTaskComment(suite.ctx, suite.user.ID, task.ID, "me too")
	suite.requireKind(err, apierrors.KindForbidden)

	_, err = suite.annotations.AddTaskComment(suite.ctx, suite.manager.ID, task.ID, "   ")
	suite.requireKind(err, apierrors.KindValidation)

	_, err = suite.annotations.AddTaskComment(suite.ctx, suite.manager.ID, 9999, "lost")
	suite.requireKind(err, apierrors.KindNotFound)

	_, err = suite.annotations.AddUserComment(suite.ctx, suite.manager.ID, 9999, "lost")
	suite.requireKind(err, apierrors.KindUserNotFound)
}

func (suite *ServiceTestSuite) TestCommentReadAndDelete() {
	task := testutil.CreateTask(suite.T(), suite.db, "Readable")
	comment, err := suite.annotations.AddTaskComment(suite.ctx, suite.admin.ID, task.ID, "first")
	suite.Require().NoError(err)

	comments, err := suite.annotations.ListComments(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Len(comments, 1)

	_, err = suite.annotations.ListComments(suite.ctx, suite.manager.ID)
	suite.requireKind(err, apierrors.KindForbidden)

	got, err := suite.annotations.GetComment(suite.ctx, suite.admin.ID, comment.ID)
	suite.Require().NoError(err)
	suite.Equal("first", got.Content)

	suite.Require().NoError(suite.annotations.DeleteComment(suite.ctx, suite.admin.ID, comment.ID))
	comments, err = suite.annotations.ListComments(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Empty(comments)

	suite.requireKind(suite.annotations.DeleteComment(suite.ctx, suite.admin.ID, comment.ID), apierrors.KindNotFound)
}

func (suite *ServiceTestSuite) TestAddAttachment_Stored() {
	task := testutil.CreateTask(suite.T(), suite.db, "With file")

	attachment, err := suite.annotations.AddTaskAttachment(suite.ctx, suite.admin.ID, task.ID, Upload{Name: "shot.png", Body: pngReader()})
	suite.Require().NoError(err)
	suite.Equal("image/png", attachment.ContentType)
	suite.Equal("shot.png", attachment.FileName)
	suite.Equal(int64(len(pngBytes)), attachment.Size)
	suite.True(strings.HasPrefix(attachment.FilePath, "/storage/attachments/"))
	suite.True(strings.HasSuffix(attachment.FilePath, ".png"))

	data, err := afero.ReadFile(suite.blobs.Fs(), "/"+path.Base(attachment.FilePath))
	suite.Require().NoError(err)
	suite.Equal(pngBytes, data)

	list, err := suite.annotations.ListAttachments(suite.ctx, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Len(list, 1)

	suite.Require().NoError(suite.annotations.DeleteAttachment(suite.ctx, suite.admin.ID, attachment.ID))
	suite.False(suite.blobExists(attachment.FilePath))
	_, err = suite.annotations.GetAttachment(suite.ctx, suite.admin.ID, attachment.ID)
	suite.requireKind(err, apierrors.KindNotFound)
}

func (suite *ServiceTestSuite) TestAddAttachment_Rejected() {
	task := testutil.CreateTask(suite.T(), suite.db, "Rejects")

	_, err := suite.annotations.AddTaskAttachment(suite.ctx, suite.admin.ID, task.ID, Upload{Name: "a.txt", Body: strings.NewReader("plain text")})
	suite.requireKind(err, apierrors.KindValidation)

	_, err = suite.annotations.AddTaskAttachment(suite.ctx, suite.manager.ID, task.ID, Upload{Name: "a.png", Body: pngReader()})
	suite.requireKind(err, apierrors.KindForbidden)

	_, err = suite.annotations.AddUserAttachment(suite.ctx, suite.admin.ID, 9999, Upload{Name: "a.png", Body: pngReader()})
	suite.requireKind(err, apierrors.KindUserNotFound)

	_, err = suite.annotations.AddTaskAttachment(suite.ctx, suite.admin.ID, task.ID, Upload{Name: "empty"})
	suite.requireKind(err, apierrors.KindValidation)

	attachments, err := suite.repos.Annotations.ListAttachmentsFor(suite.ctx, models.OwnerTask, task.ID)
	suite.Require().NoError(err)
	suite.Empty(attachments)
}

func (suite *ServiceTestSuite) TestAddAttachment_StorageFailure() {
	task := testutil.CreateTask(suite.T(), suite.db, "Disk full")

	blobs := new(MockBlobStore)
	blobs.On("Store", mock.Anything, ".png", mock.Anything).Return("", errors.New("disk full"))
	svc := NewAnnotationService(suite.repos, NewAuthorizer(suite.repos.Users, suite.repos.Roles), suite.cache, blobs,
		Options{Logger: zap.NewNop()})

	_, err := svc.AddTaskAttachment(suite.ctx, suite.admin.ID, task.ID, Upload{Name: "a.png", Body: pngReader()})
	suite.True(errors.Is(err, apierrors.ErrStorageFailure))
	blobs.AssertExpectations(suite.T())

	attachments, err := suite.repos.Annotations.ListAttachmentsFor(suite.ctx, models.OwnerTask, task.ID)
	suite.Require().NoError(err)
	suite.Empty(attachments)
}
