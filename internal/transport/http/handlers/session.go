package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// SessionHandler exposes the visit-session lifecycle endpoints.
type SessionHandler struct {
	visits *usecase.VisitService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(visits *usecase.VisitService) *SessionHandler {
	return &SessionHandler{visits: visits}
}

// RegisterRoutes binds session lifecycle routes to the provided router group.
// Extra middlewares apply to session creation only.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup, createMiddlewares ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	createChain := append([]gin.HandlerFunc{}, createMiddlewares...)
	createChain = append(createChain, h.CreateSession)
	r.POST("", createChain...)
	r.GET("/active", h.ListActive)
	r.POST("/:session_id/touch", h.TouchSession)
	r.POST("/:session_id/share", h.ShareSession)
	r.POST("/:session_id/complete", h.CompleteSession)
	r.POST("/:session_id/cancel", h.CancelSession)
}

// CreateSession godoc
// @Summary Open a visit session
// @Description Creates a submission and its visit session, pre-populating pending observations from templates.
// @Tags Sessions
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body SessionCreateRequest true "Session creation payload"
// @Success 201 {object} SessionCreateResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req SessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "site_id is required"))
		return
	}

	result, err := h.visits.CreateSession(c.Request.Context(), principal, usecase.CreateSessionInput{
		SiteID:            req.SiteID,
		Fields:            req.Fields,
		PetriTemplates:    req.PetriTemplates,
		GasifierTemplates: req.GasifierTemplates,
	})
	if err != nil {
		respondSessionError(c, err, "failed to create session")
		return
	}

	c.JSON(http.StatusCreated, SessionCreateResponse{
		Session:      newSessionPayload(result.Session),
		SubmissionID: result.SubmissionID,
		Sequence:     result.Sequence,
	})
}

// ListActive godoc
// @Summary List active sessions for the caller
// @Description Returns non-terminal sessions the caller opened or was shared into, most recently active first.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/active [get]
func (h *SessionHandler) ListActive(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.visits.ListActiveSessions(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: payloads, Total: len(payloads)})
}

// TouchSession godoc
// @Summary Record session activity
// @Description Refreshes the activity timestamp and recomputes the completion ratio.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param session_id path string true "Session identifier"
// @Success 200 {object} SessionPayload
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id}/touch [post]
func (h *SessionHandler) TouchSession(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	session, err := h.visits.TouchSession(c.Request.Context(), principal, c.Param("session_id"))
	if err != nil {
		respondSessionError(c, err, "failed to touch session")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}

// ShareSession godoc
// @Summary Share or escalate a session
// @Description Adds users to the shared set. Sharing with a privileged reviewer, or an explicit escalate intent, escalates the session.
// @Tags Sessions
// @Security Bearer
// @Accept json
// @Produce json
// @Param session_id path string true "Session identifier"
// @Param request body SessionShareRequest true "Share payload"
// @Success 200 {object} SessionPayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id}/share [post]
func (h *SessionHandler) ShareSession(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req SessionShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_ids is required"))
		return
	}

	intent := domain.ShareIntent(req.Intent)
	if req.Intent == "" {
		intent = domain.IntentShare
	}

	session, err := h.visits.ShareSession(c.Request.Context(), principal, c.Param("session_id"), req.UserIDs, intent)
	if err != nil {
		respondSessionError(c, err, "failed to share session")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}

// CompleteSession godoc
// @Summary Complete a session
// @Description Moves the session into its terminal completed state and stamps completion metadata.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param session_id path string true "Session identifier"
// @Success 200 {object} SessionPayload
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	session, err := h.visits.CompleteSession(c.Request.Context(), principal, c.Param("session_id"))
	if err != nil {
		respondSessionError(c, err, "failed to complete session")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}

// CancelSession godoc
// @Summary Cancel a session
// @Description Moves the session into its terminal cancelled state and discards pending observations.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param session_id path string true "Session identifier"
// @Success 200 {object} SessionCancelResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id}/cancel [post]
func (h *SessionHandler) CancelSession(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	result, err := h.visits.CancelSession(c.Request.Context(), principal, c.Param("session_id"))
	if err != nil {
		respondSessionError(c, err, "failed to cancel session")
		return
	}

	c.JSON(http.StatusOK, SessionCancelResponse{
		Session:         newSessionPayload(result.Session),
		DeletedPetri:    result.DeletedPetri,
		DeletedGasifier: result.DeletedGasifier,
	})
}

// respondSessionError maps lifecycle errors to HTTP responses. Rejected
// transitions carry the session's current state so clients can reconcile.
func respondSessionError(c *gin.Context, err error, fallback string) {
	var transition *usecase.InvalidTransitionError
	if errors.As(err, &transition) {
		resp := NewErrorResponse(c, transition.Error())
		resp.State = string(transition.Current)
		c.JSON(http.StatusConflict, resp)
		return
	}

	cases := []ErrorCase{
		{Err: usecase.ErrSessionExists, Status: http.StatusConflict, Message: "session already exists for submission"},
		{Err: usecase.ErrInvalidTransition, Status: http.StatusConflict, Message: "invalid session transition"},
		{Err: usecase.ErrAccessDenied, Status: http.StatusForbidden, Message: "access denied"},
		{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "invalid input"},
		{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	}
	RespondWithMappedError(c, err, cases, http.StatusInternalServerError, fallback)
}
