package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"github.com/yukikurage/task-lifecycle-api/internal/storage"
)

// AnnotationService attaches comments and files to tasks and users
type AnnotationService struct {
	repos repository.Set
	authz *Authorizer
	cache *cache.Cache
	blobs storage.BlobStore
	opts  Options
	log   *zap.Logger
}

func NewAnnotationService(repos repository.Set, authz *Authorizer, c *cache.Cache, blobs storage.BlobStore, opts Options) *AnnotationService {
	opts = opts.withDefaults()
	return &AnnotationService{
		repos: repos,
		authz: authz,
		cache: c,
		blobs: blobs,
		opts:  opts,
		log:   opts.Logger.Named("annotations"),
	}
}

// Upload is a file received from a client
type Upload struct {
	Name string
	Body io.Reader
}

func (s *AnnotationService) invalidate(ctx context.Context, keys ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, keys...)
	}
}

// ownerExists checks that the owner is an active task or user
func (s *AnnotationService) ownerExists(ctx context.Context, ownerType models.OwnerType, ownerID uint64) error {
	switch ownerType {
	case models.OwnerTask:
		if _, err := s.repos.Tasks.FindByID(ctx, ownerID); err != nil {
			return notFoundAs(err, apierrors.ErrNotFound)
		}
	case models.OwnerUser:
		if _, err := s.repos.Users.FindByID(ctx, ownerID); err != nil {
			return notFoundAs(err, apierrors.ErrUserNotFound)
		}
	default:
		return apierrors.Internal("unknown owner type", errors.New(string(ownerType)))
	}
	return nil
}

func (s *AnnotationService) addComment(ctx context.Context, callerID uint64, ownerType models.OwnerType, ownerID uint64, content string) (*models.Comment, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin, models.RoleManager); err != nil {
		return nil, err
	}
	if err := s.ownerExists(ctx, ownerType, ownerID); err != nil {
		return nil, fail(s.log, "find comment owner", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apierrors.Validation("The content field is required.", map[string]string{"content": "is required"})
	}

	comment := &models.Comment{OwnerType: ownerType, OwnerID: ownerID, Content: content}
	if err := s.repos.Annotations.CreateComment(ctx, comment); err != nil {
		return nil, fail(s.log, "create comment", err)
	}

	s.invalidate(ctx, constants.CacheKeyComments)
	s.log.Info("comment added",
		zap.String("owner_type", string(ownerType)),
		zap.Uint64("owner_id", ownerID),
		zap.Uint64("by", callerID))
	return comment, nil
}

// AddTaskComment comments on an active task
func (s *AnnotationService) AddTaskComment(ctx context.Context, callerID, taskID uint64, content string) (*models.Comment, error) {
	return s.addComment(ctx, callerID, models.OwnerTask, taskID, content)
}

// AddUserComment comments on an active user
func (s *AnnotationService) AddUserComment(ctx context.Context, callerID, userID uint64, content string) (*models.Comment, error) {
	return s.addComment(ctx, callerID, models.OwnerUser, userID, content)
}

func (s *AnnotationService) addAttachment(ctx context.Context, callerID uint64, ownerType models.OwnerType, ownerID uint64, file Upload) (*models.Attachment, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.ownerExists(ctx, ownerType, ownerID); err != nil {
		return nil, fail(s.log, "find attachment owner", err)
	}
	if file.Body == nil {
		return nil, apierrors.Validation("The file field is required.", map[string]string{"file": "is required"})
	}

	contentType, ext, body, err := storage.Sniff(file.Body)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return nil, apierrors.Validation("The file must be a file of type: jpg, jpeg, png, pdf.", map[string]string{
				"file": "unsupported type " + contentType,
			})
		}
		return nil, apierrors.Validation("The file could not be read.", map[string]string{"file": err.Error()})
	}

	counter := &countingReader{r: body}
	ref, err := s.blobs.Store(ctx, ext, counter)
	if err != nil {
		s.log.Error("blob store failed", zap.Error(err))
		return nil, apierrors.Wrap(apierrors.KindStorageFailure, apierrors.ErrStorageFailure.Message, err)
	}

	attachment := &models.Attachment{
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		FilePath:    ref,
		FileName:    file.Name,
		ContentType: contentType,
		Size:        counter.n,
	}
	if err := s.repos.Annotations.CreateAttachment(ctx, attachment); err != nil {
		removeBlobs(ctx, s.blobs, s.log, []models.Attachment{*attachment})
		return nil, fail(s.log, "create attachment", err)
	}

	s.invalidate(ctx, constants.CacheKeyAttachments)
	s.log.Info("attachment added",
		zap.String("owner_type", string(ownerType)),
		zap.Uint64("owner_id", ownerID),
		zap.String("ref", ref))
	return attachment, nil
}

// AddTaskAttachment stores a file and attaches it to an active task
func (s *AnnotationService) AddTaskAttachment(ctx context.Context, callerID, taskID uint64, file Upload) (*models.Attachment, error) {
	return s.addAttachment(ctx, callerID, models.OwnerTask, taskID, file)
}

// AddUserAttachment stores a file and attaches it to an active user
func (s *AnnotationService) AddUserAttachment(ctx context.Context, callerID, userID uint64, file Upload) (*models.Attachment, error) {
	return s.addAttachment(ctx, callerID, models.OwnerUser, userID, file)
}

// ListComments returns every comment
func (s *AnnotationService) ListComments(ctx context.Context, callerID uint64) ([]models.Comment, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.Comment, error) {
		return s.repos.Annotations.ListComments(ctx)
	}
	var (
		comments []models.Comment
		err      error
	)
	if s.cache != nil {
		comments, err = cache.GetOrLoadJSON(s.cache, ctx, constants.CacheKeyComments, s.opts.CacheTTL, load)
	} else {
		comments, err = load(ctx)
	}
	if err != nil {
		return nil, fail(s.log, "list comments", err)
	}
	return comments, nil
}

// GetComment returns one comment
func (s *AnnotationService) GetComment(ctx context.Context, callerID, id uint64) (*models.Comment, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	comment, err := s.repos.Annotations.FindComment(ctx, id)
	if err != nil {
		return nil, fail(s.log, "find comment", notFoundAs(err, apierrors.ErrNotFound))
	}
	return comment, nil
}

// DeleteComment removes a comment
func (s *AnnotationService) DeleteComment(ctx context.Context, callerID, id uint64) error {
	if _, err := s.GetComment(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repos.Annotations.DeleteComment(ctx, id); err != nil {
		return fail(s.log, "delete comment", err)
	}
	s.invalidate(ctx, constants.CacheKeyComments)
	s.log.Info("comment deleted", zap.Uint64("comment_id", id), zap.Uint64("by", callerID))
	return nil
}

// ListAttachments returns every attachment
func (s *AnnotationService) ListAttachments(ctx context.Context, callerID uint64) ([]models.Attachment, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]models.Attachment, error) {
		return s.repos.Annotations.ListAttachments(ctx)
	}
	var (
		attachments []models.Attachment
		err         error
	)
	if s.cache != nil {
		attachments, err = cache.GetOrLoadJSON(s.cache, ctx, constants.CacheKeyAttachments, s.opts.CacheTTL, load)
	} else {
		attachments, err = load(ctx)
	}
	if err != nil {
		return nil, fail(s.log, "list attachments", err)
	}
	return attachments, nil
}

// GetAttachment returns one attachment
func (s *AnnotationService) GetAttachment(ctx context.Context, callerID, id uint64) (*models.Attachment, error) {
	if _, err := s.authz.Require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	attachment, err := s.repos.Annotations.FindAttachment(ctx, id)
	if err != nil {
		return nil, fail(s.log, "find attachment", notFoundAs(err, apierrors.ErrNotFound))
	}
	return attachment, nil
}

// DeleteAttachment removes an attachment and its stored file
func (s *AnnotationService) DeleteAttachment(ctx context.Context, callerID, id uint64) error {
	attachment, err := s.GetAttachment(ctx, callerID, id)
	if err != nil {
		return err
	}
	if err := s.repos.Annotations.DeleteAttachment(ctx, id); err != nil {
		return fail(s.log, "delete attachment", err)
	}
	removeBlobs(ctx, s.blobs, s.log, []models.Attachment{*attachment})
	s.invalidate(ctx, constants.CacheKeyAttachments)
	s.log.Info("attachment deleted", zap.Uint64("attachment_id", id), zap.Uint64("by", callerID))
	return nil
}

// removeBlobs deletes stored files after their rows are gone. Failures are
// logged.
func removeBlobs(ctx context.Context, blobs storage.BlobStore, log *zap.Logger, attachments []models.Attachment) {
	if blobs == nil {
		return
	}
	for _, a := range attachments {
		if err := blobs.Remove(ctx, a.FilePath); err != nil {
			log.Warn("failed to remove blob", zap.String("ref", a.FilePath), zap.Error(err))
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
