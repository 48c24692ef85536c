package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// ProgramHandler exposes program permission and membership endpoints.
type ProgramHandler struct {
	access   *usecase.AccessService
	programs *usecase.ProgramService
}

// NewProgramHandler constructs a program handler.
func NewProgramHandler(access *usecase.AccessService, programs *usecase.ProgramService) *ProgramHandler {
	return &ProgramHandler{access: access, programs: programs}
}

// RegisterRoutes binds program management routes to the provided router group.
func (h *ProgramHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.PUT("/:program_id/members/:user_id", h.UpsertMembership)
	r.DELETE("/:program_id/members/:user_id", h.RemoveMembership)
	r.POST("/:program_id/recount", h.Recount)
}

// RegisterAccessRoutes binds the capability summary route, kept on a separate
// group so clients can probe permissions without program management access.
func (h *ProgramHandler) RegisterAccessRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/programs/:program_id/permissions", h.Permissions)
}

// Permissions godoc
// @Summary Summarize the caller's capabilities on a program
// @Description Returns the capability summary clients use to gate UI affordances.
// @Tags Programs
// @Security Bearer
// @Produce json
// @Param program_id path string true "Program identifier"
// @Success 200 {object} PermissionsResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/access/programs/{program_id}/permissions [get]
func (h *ProgramHandler) Permissions(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	programID := c.Param("program_id")
	perms, err := h.access.ProgramPermissions(c.Request.Context(), principal, programID)
	if err != nil {
		respondProgramError(c, err, "failed to resolve permissions")
		return
	}

	c.JSON(http.StatusOK, PermissionsResponse{
		ProgramID:        programID,
		CanRead:          perms.CanRead,
		CanWrite:         perms.CanWrite,
		CanManageMembers: perms.CanManageMembers,
	})
}

// UpsertMembership godoc
// @Summary Grant or change a program role
// @Tags Programs
// @Security Bearer
// @Accept json
// @Produce json
// @Param program_id path string true "Program identifier"
// @Param user_id path string true "Target user identifier"
// @Param request body MembershipUpsertRequest true "Role payload"
// @Success 200 {object} MembershipPayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/programs/{program_id}/members/{user_id} [put]
func (h *ProgramHandler) UpsertMembership(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MembershipUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role is required"))
		return
	}

	membership, err := h.programs.UpsertMembership(
		c.Request.Context(), principal,
		c.Param("program_id"), c.Param("user_id"), domain.Role(req.Role),
	)
	if err != nil {
		respondProgramError(c, err, "failed to upsert membership")
		return
	}

	c.JSON(http.StatusOK, MembershipPayload{
		ProgramID:  membership.ProgramID,
		UserID:     membership.UserID,
		Role:       string(membership.Role),
		AssignedAt: membership.AssignedAt,
	})
}

// RemoveMembership godoc
// @Summary Revoke a program role
// @Tags Programs
// @Security Bearer
// @Produce json
// @Param program_id path string true "Program identifier"
// @Param user_id path string true "Target user identifier"
// @Success 204 "Membership removed"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/programs/{program_id}/members/{user_id} [delete]
func (h *ProgramHandler) RemoveMembership(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.programs.RemoveMembership(c.Request.Context(), principal, c.Param("program_id"), c.Param("user_id")); err != nil {
		respondProgramError(c, err, "failed to remove membership")
		return
	}

	c.Status(http.StatusNoContent)
}

// Recount godoc
// @Summary Recompute a program's roll-up counters
// @Description Repairs drifted site and submission counters from live counts.
// @Tags Programs
// @Security Bearer
// @Produce json
// @Param program_id path string true "Program identifier"
// @Success 200 {object} ProgramPayload
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/programs/{program_id}/recount [post]
func (h *ProgramHandler) Recount(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	program, err := h.programs.RecountProgram(c.Request.Context(), principal, c.Param("program_id"))
	if err != nil {
		respondProgramError(c, err, "failed to recount program")
		return
	}

	c.JSON(http.StatusOK, ProgramPayload{
		ID:              program.ID,
		Name:            program.Name,
		CompanyID:       program.CompanyID,
		SiteCount:       program.SiteCount,
		SubmissionCount: program.SubmissionCount,
	})
}

func respondProgramError(c *gin.Context, err error, fallback string) {
	cases := []ErrorCase{
		{Err: usecase.ErrAccessDenied, Status: http.StatusForbidden, Message: "access denied"},
		{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "invalid role"},
		{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "invalid input"},
		{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	}
	RespondWithMappedError(c, err, cases, http.StatusInternalServerError, fallback)
}
