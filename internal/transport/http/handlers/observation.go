package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// ObservationHandler exposes observation completion endpoints.
type ObservationHandler struct {
	visits *usecase.VisitService
}

// NewObservationHandler constructs an observation handler.
func NewObservationHandler(visits *usecase.VisitService) *ObservationHandler {
	return &ObservationHandler{visits: visits}
}

// RegisterRoutes binds observation routes to the provided router group.
func (h *ObservationHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.PUT("/:observation_id/media", h.ConfirmMedia)
}

// ConfirmMedia godoc
// @Summary Confirm captured media for an observation
// @Description Sets the media reference, flips the observation to completed, and recomputes the owning session's completion ratio.
// @Tags Observations
// @Security Bearer
// @Accept json
// @Produce json
// @Param observation_id path string true "Observation identifier"
// @Param request body ObservationMediaRequest true "Media reference payload"
// @Success 200 {object} SessionPayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/observations/{observation_id}/media [put]
func (h *ObservationHandler) ConfirmMedia(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ObservationMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "media_ref is required"))
		return
	}

	session, err := h.visits.ConfirmObservationMedia(c.Request.Context(), principal, c.Param("observation_id"), req.MediaRef)
	if err != nil {
		respondSessionError(c, err, "failed to confirm observation media")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}
