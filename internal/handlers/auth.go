package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/middleware"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/services"
)

// AuthHandler coordinates account-related HTTP handlers.
type AuthHandler struct {
	users *services.UserService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register creates an account. The role follows from the email domain.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	message := "User registered successfully"
	if user.Role != nil && user.Role.Name != models.RoleUser {
		message = fmt.Sprintf("Registration successful as %s", user.Role.Name)
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"user":    dto.ToUserDTO(*user),
	})
}

// Login authenticates a user and issues a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"token_type": "Bearer",
		"expires_at": session.ExpiresAt,
		"user":       dto.ToUserDTO(*session.User),
	})
}

// Logout revokes the token used for the request.
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp := middleware.GetToken(c)
	if err := h.users.Logout(c.Request.Context(), jti, exp); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	user, err := h.users.Profile(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.ToUserDTO(*user)})
}

// UpdateProfile changes a user's name or password.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, targetID, services.UpdateProfileInput{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    dto.ToUserDTO(*user),
	})
}

// DeleteSelf soft-deletes the caller's own account.
func (h *AuthHandler) DeleteSelf(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	jti, exp := middleware.GetToken(c)

	if err := h.users.DeleteSelf(c.Request.Context(), userID, jti, exp); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// ListUsers returns active users.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	users, err := h.users.List(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": dto.ToUserDTOs(users)})
}

// ListDeleted returns soft-deleted users.
func (h *AuthHandler) ListDeleted(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	users, err := h.users.ListDeleted(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": dto.ToUserDTOs(users)})
}

// Restore brings back a soft-deleted user by email.
func (h *AuthHandler) Restore(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.EmailRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Restore(c.Request.Context(), userID, req.Email)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User restored successfully",
		"user":    dto.ToUserDTO(*user),
	})
}

// ForceDelete permanently removes a user by email.
func (h *AuthHandler) ForceDelete(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.EmailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.users.ForceDelete(c.Request.Context(), userID, req.Email); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User permanently deleted"})
}
