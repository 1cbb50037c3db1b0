package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/services"
)

type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func (h *RoleHandler) ListRoles(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	roles, err := h.roles.List(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": dto.ToRoleDTOs(roles)})
}

func (h *RoleHandler) GetRole(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	role, err := h.roles.Get(c.Request.Context(), userID, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": dto.ToRoleDTO(*role)})
}

func (h *RoleHandler) DeleteRole(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.roles.Delete(c.Request.Context(), userID, id); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role deleted successfully"})
}
