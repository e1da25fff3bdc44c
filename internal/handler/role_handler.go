package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// RoleHandler exposes roles and permissions.
type RoleHandler struct {
	roles *service.RoleService
}

// NewRoleHandler constructs RoleHandler.
func NewRoleHandler(roles *service.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// List godoc
// @Summary List roles
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roles, nil)
}

// Get godoc
// @Summary Get role with permissions
// @Tags Roles
// @Produce json
// @Param id path string true "Role ID"
// @Success 200 {object} response.Envelope
// @Router /roles/{id} [get]
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.roles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Create godoc
// @Summary Create role
// @Tags Roles
// @Accept json
// @Produce json
// @Param payload body models.RoleRequest true "Role"
// @Success 201 {object} response.Envelope
// @Router /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req models.RoleRequest
	if !bind(c, &req) {
		return
	}
	role, err := h.roles.Create(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// Update godoc
// @Summary Update role
// @Tags Roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param payload body models.RoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Router /roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	var req models.RoleRequest
	if !bind(c, &req) {
		return
	}
	role, err := h.roles.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Delete godoc
// @Summary Delete role
// @Description System roles cannot be deleted
// @Tags Roles
// @Param id path string true "Role ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.roles.Delete(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignPermissions godoc
// @Summary Replace role permissions
// @Tags Roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param payload body models.AssignPermissionsRequest true "Permissions"
// @Success 200 {object} response.Envelope
// @Router /roles/{id}/permissions [put]
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	var req models.AssignPermissionsRequest
	if !bind(c, &req) {
		return
	}
	role, err := h.roles.AssignPermissions(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Permissions godoc
// @Summary List permissions
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions [get]
func (h *RoleHandler) Permissions(c *gin.Context) {
	perms, err := h.roles.ListPermissions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perms, nil)
}
