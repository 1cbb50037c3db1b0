package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/services"
)

// AnnotationHandler serves comments and attachments
type AnnotationHandler struct {
	annotations    *services.AnnotationService
	maxUploadBytes int64
}

func NewAnnotationHandler(annotations *services.AnnotationService, maxUploadBytes int64) *AnnotationHandler {
	return &AnnotationHandler{annotations: annotations, maxUploadBytes: maxUploadBytes}
}

func (h *AnnotationHandler) addComment(c *gin.Context, owner models.OwnerType) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	ownerID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.CommentRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		comment *models.Comment
		err     error
	)
	if owner == models.OwnerTask {
		comment, err = h.annotations.AddTaskComment(c.Request.Context(), userID, ownerID, req.Content)
	} else {
		comment, err = h.annotations.AddUserComment(c.Request.Context(), userID, ownerID, req.Content)
	}
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Comment added successfully",
		"comment": dto.ToCommentDTO(*comment),
	})
}

// AddTaskComment comments on a task
func (h *AnnotationHandler) AddTaskComment(c *gin.Context) { h.addComment(c, models.OwnerTask) }

// AddUserComment comments on a user
func (h *AnnotationHandler) AddUserComment(c *gin.Context) { h.addComment(c, models.OwnerUser) }

func (h *AnnotationHandler) addAttachment(c *gin.Context, owner models.OwnerType) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	ownerID, ok := pathID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(c, err) {
			return
		}
		apierrors.BadRequestWithDetails(c, "The file field is required.", map[string]string{"file": "is required"})
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		apierrors.BadRequestWithDetails(c, "The file is too large.", map[string]string{
			"file": fmt.Sprintf("must not be greater than %d bytes", h.maxUploadBytes),
		})
		return
	}
	f, err := fh.Open()
	if err != nil {
		apierrors.BadRequestWithDetails(c, "The file could not be read.", map[string]string{"file": err.Error()})
		return
	}
	defer f.Close()

	upload := services.Upload{Name: fh.Filename, Body: f}
	var attachment *models.Attachment
	if owner == models.OwnerTask {
		attachment, err = h.annotations.AddTaskAttachment(c.Request.Context(), userID, ownerID, upload)
	} else {
		attachment, err = h.annotations.AddUserAttachment(c.Request.Context(), userID, ownerID, upload)
	}
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Attachment uploaded successfully",
		"attachment": dto.ToAttachmentDTO(*attachment),
	})
}

// AddTaskAttachment uploads a file to a task
func (h *AnnotationHandler) AddTaskAttachment(c *gin.Context) { h.addAttachment(c, models.OwnerTask) }

// AddUserAttachment uploads a file to a user
func (h *AnnotationHandler) AddUserAttachment(c *gin.Context) { h.addAttachment(c, models.OwnerUser) }

func (h *AnnotationHandler) ListComments(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	comments, err := h.annotations.ListComments(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": dto.ToCommentDTOs(comments)})
}

func (h *AnnotationHandler) GetComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	comment, err := h.annotations.GetComment(c.Request.Context(), userID, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": dto.ToCommentDTO(*comment)})
}

func (h *AnnotationHandler) DeleteComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.annotations.DeleteComment(c.Request.Context(), userID, id); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

func (h *AnnotationHandler) ListAttachments(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	attachments, err := h.annotations.ListAttachments(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": dto.ToAttachmentDTOs(attachments)})
}

func (h *AnnotationHandler) GetAttachment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	attachment, err := h.annotations.GetAttachment(c.Request.Context(), userID, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachment": dto.ToAttachmentDTO(*attachment)})
}

func (h *AnnotationHandler) DeleteAttachment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.annotations.DeleteAttachment(c.Request.Context(), userID, id); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted successfully"})
}
