package dto

import (
	"time"

	"github.com/yukikurage/task-lifecycle-api/internal/models"
)

type CommentDTO struct {
	ID        uint64           `json:"id"`
	OwnerType models.OwnerType `json:"owner_type"`
	OwnerID   uint64           `json:"owner_id"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

type AttachmentDTO struct {
	ID          uint64           `json:"id"`
	OwnerType   models.OwnerType `json:"owner_type"`
	OwnerID     uint64           `json:"owner_id"`
	FilePath    string           `json:"file_path"`
	FileName    string           `json:"file_name,omitempty"`
	ContentType string           `json:"content_type"`
	Size        int64            `json:"size"`
	CreatedAt   time.Time        `json:"created_at"`
}

func ToCommentDTO(c models.Comment) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		OwnerType: c.OwnerType,
		OwnerID:   c.OwnerID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

func ToCommentDTOs(comments []models.Comment) []CommentDTO {
	items := make([]CommentDTO, len(comments))
	for i, c := range comments {
		items[i] = ToCommentDTO(c)
	}
	return items
}

func ToAttachmentDTO(a models.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:          a.ID,
		OwnerType:   a.OwnerType,
		OwnerID:     a.OwnerID,
		FilePath:    a.FilePath,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
	}
}

func ToAttachmentDTOs(attachments []models.Attachment) []AttachmentDTO {
	items := make([]AttachmentDTO, len(attachments))
	for i, a := range attachments {
		items[i] = ToAttachmentDTO(a)
	}
	return items
}
