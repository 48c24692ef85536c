package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// UserHandler exposes user account management endpoints.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes binds user routes to the provided router group.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/:user_id/deactivate", h.Deactivate)
}

// Deactivate godoc
// @Summary Deactivate a user account
// @Description Marks the user inactive and forces every program membership to read-only in one transaction.
// @Tags Users
// @Security Bearer
// @Produce json
// @Param user_id path string true "User identifier"
// @Success 200 {object} UserPayload
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/{user_id}/deactivate [post]
func (h *UserHandler) Deactivate(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.users.Deactivate(c.Request.Context(), principal, c.Param("user_id"))
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrAccessDenied, Status: http.StatusForbidden, Message: "access denied"},
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	c.JSON(http.StatusOK, UserPayload{
		ID:           user.ID,
		Email:        user.Email,
		CompanyID:    user.CompanyID,
		CompanyAdmin: user.CompanyAdmin,
		SuperAdmin:   user.SuperAdmin,
		Active:       user.Active,
	})
}
