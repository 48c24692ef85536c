package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// AdminHandler exposes internal operational endpoints for schedulers and
// operators.
type AdminHandler struct {
	visits   *usecase.VisitService
	programs *usecase.ProgramService
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(visits *usecase.VisitService, programs *usecase.ProgramService) *AdminHandler {
	return &AdminHandler{visits: visits, programs: programs}
}

// RegisterRoutes binds internal routes to the provided router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/sweep", h.Sweep)
	r.POST("/repair-ancestry", h.RepairAncestry)
}

// Sweep godoc
// @Summary Expire stale sessions
// @Description Forces every session whose creation day has ended into its terminal expired state.
// @Tags Internal
// @Security Bearer
// @Produce json
// @Success 200 {object} SweepResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /internal/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	result, err := h.visits.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "sweep failed"))
		return
	}

	c.JSON(http.StatusOK, SweepResponse{
		Scanned:           result.Scanned,
		ExpiredComplete:   result.ExpiredComplete,
		ExpiredIncomplete: result.ExpiredIncomplete,
	})
}

// RepairAncestry godoc
// @Summary Repair observation ancestry
// @Description Re-anchors observations whose denormalized site or program drifted from their submission.
// @Tags Internal
// @Security Bearer
// @Produce json
// @Success 200 {object} RepairResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /internal/repair-ancestry [post]
func (h *AdminHandler) RepairAncestry(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	fixed, err := h.programs.RepairObservationAncestry(c.Request.Context(), principal)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrAccessDenied, Status: http.StatusForbidden, Message: "access denied"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to repair observation ancestry")
		return
	}

	c.JSON(http.StatusOK, RepairResponse{Fixed: fixed})
}
