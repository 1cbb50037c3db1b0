package repository

import (
	"context"

	"github.com/yukikurage/task-lifecycle-api/internal/database"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"gorm.io/gorm"
)

// GormAnnotationRepository is a GORM implementation of AnnotationRepository
type GormAnnotationRepository struct {
	db *gorm.DB
}

func NewAnnotationRepository(db *gorm.DB) AnnotationRepository {
	return &GormAnnotationRepository{db: db}
}

func (r *GormAnnotationRepository) WithTx(tx *gorm.DB) AnnotationRepository {
	return &GormAnnotationRepository{db: tx}
}

func (r *GormAnnotationRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *GormAnnotationRepository) FindComment(ctx context.Context, id uint64) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *GormAnnotationRepository) ListComments(ctx context.Context) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).Order("id ASC").Find(&comments).Error
	return comments, err
}

func (r *GormAnnotationRepository) ListCommentsFor(ctx context.Context, ownerType models.OwnerType, ownerID uint64) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerType, ownerID)).
		Order("id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *GormAnnotationRepository) DeleteComment(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

func (r *GormAnnotationRepository) CreateAttachment(ctx context.Context, attachment *models.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *GormAnnotationRepository) FindAttachment(ctx context.Context, id uint64) (*models.Attachment, error) {
	var attachment models.Attachment
	if err := r.db.WithContext(ctx).First(&attachment, id).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *GormAnnotationRepository) ListAttachments(ctx context.Context) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	err := r.db.WithContext(ctx).Order("id ASC").Find(&attachments).Error
	return attachments, err
}

func (r *GormAnnotationRepository) ListAttachmentsFor(ctx context.Context, ownerType models.OwnerType, ownerID uint64) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	err := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerType, ownerID)).
		Order("id ASC").
		Find(&attachments).Error
	return attachments, err
}

func (r *GormAnnotationRepository) DeleteAttachment(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Attachment{}, id).Error
}

// DeleteForOwner removes an owner's comments and attachments
func (r *GormAnnotationRepository) DeleteForOwner(ctx context.Context, ownerType models.OwnerType, ownerID uint64) ([]models.Attachment, error) {
	db := r.db.WithContext(ctx)

	attachments := []models.Attachment{}
	if err := db.Scopes(database.OwnedBy(ownerType, ownerID)).Find(&attachments).Error; err != nil {
		return nil, err
	}
	if err := db.Scopes(database.OwnedBy(ownerType, ownerID)).Delete(&models.Comment{}).Error; err != nil {
		return nil, err
	}
	if err := db.Scopes(database.OwnedBy(ownerType, ownerID)).Delete(&models.Attachment{}).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}
