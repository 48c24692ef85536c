package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// HistoryHandler exposes audit ledger query and export endpoints.
type HistoryHandler struct {
	history *usecase.HistoryService
}

// NewHistoryHandler constructs a history handler.
func NewHistoryHandler(history *usecase.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// RegisterProgramRoutes binds program-scoped ledger routes.
func (h *HistoryHandler) RegisterProgramRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/:program_id/history", h.QueryProgramHistory)
	r.GET("/:program_id/history/export", h.ExportProgramHistory)
}

// RegisterUserRoutes binds user-scoped ledger routes.
func (h *HistoryHandler) RegisterUserRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/:user_id/history", h.QueryUserHistory)
	r.GET("/:user_id/history/export", h.ExportUserHistory)
}

// QueryProgramHistory godoc
// @Summary Query a program's audit ledger
// @Description Returns ledger entries for the program, newest first, with optional filters.
// @Tags History
// @Security Bearer
// @Produce json
// @Param program_id path string true "Program identifier"
// @Param site_id query string false "Filter by site"
// @Param object_type query string false "Filter by object type"
// @Param kind query string false "Filter by mutation kind (created|updated|deleted)"
// @Param actor_user_id query string false "Filter by actor"
// @Param limit query int false "Page size (default 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} HistoryListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/programs/{program_id}/history [get]
func (h *HistoryHandler) QueryProgramHistory(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	events, err := h.history.QueryProgramHistory(c.Request.Context(), principal, c.Param("program_id"), historyFilterFromQuery(c))
	if err != nil {
		respondHistoryError(c, err, "failed to query program history")
		return
	}

	c.JSON(http.StatusOK, newHistoryListResponse(events))
}

// ExportProgramHistory godoc
// @Summary Export a program's audit ledger as CSV
// @Tags History
// @Security Bearer
// @Produce text/csv
// @Param program_id path string true "Program identifier"
// @Success 200 {string} string "CSV export"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/programs/{program_id}/history/export [get]
func (h *HistoryHandler) ExportProgramHistory(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	programID := c.Param("program_id")

	var buf bytes.Buffer
	if err := h.history.ExportProgramHistoryCSV(c.Request.Context(), principal, programID, historyFilterFromQuery(c), &buf); err != nil {
		respondHistoryError(c, err, "failed to export program history")
		return
	}

	writeCSVResponse(c, fmt.Sprintf("program-%s-history.csv", programID), buf.Bytes())
}

// QueryUserHistory godoc
// @Summary Query the audit trail of a user
// @Description Returns ledger entries where the user is the actor or the subject, newest first.
// @Tags History
// @Security Bearer
// @Produce json
// @Param user_id path string true "User identifier"
// @Param limit query int false "Page size (default 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} HistoryListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/{user_id}/history [get]
func (h *HistoryHandler) QueryUserHistory(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	events, err := h.history.QueryUserHistory(c.Request.Context(), principal, c.Param("user_id"), historyFilterFromQuery(c))
	if err != nil {
		respondHistoryError(c, err, "failed to query user history")
		return
	}

	c.JSON(http.StatusOK, newHistoryListResponse(events))
}

// ExportUserHistory godoc
// @Summary Export a user's audit trail as CSV
// @Tags History
// @Security Bearer
// @Produce text/csv
// @Param user_id path string true "User identifier"
// @Success 200 {string} string "CSV export"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/{user_id}/history/export [get]
func (h *HistoryHandler) ExportUserHistory(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	userID := c.Param("user_id")

	var buf bytes.Buffer
	if err := h.history.ExportUserHistoryCSV(c.Request.Context(), principal, userID, historyFilterFromQuery(c), &buf); err != nil {
		respondHistoryError(c, err, "failed to export user history")
		return
	}

	writeCSVResponse(c, fmt.Sprintf("user-%s-history.csv", userID), buf.Bytes())
}

func historyFilterFromQuery(c *gin.Context) domain.HistoryFilter {
	filter := domain.HistoryFilter{}

	if siteID := c.Query("site_id"); siteID != "" {
		filter.SiteID = &siteID
	}
	if objectType := c.Query("object_type"); objectType != "" {
		filter.ObjectType = &objectType
	}
	if raw := c.Query("kind"); raw != "" {
		kind := domain.HistoryKind(raw)
		filter.Kind = &kind
	}
	if actor := c.Query("actor_user_id"); actor != "" {
		filter.ActorUserID = &actor
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	return filter
}

func newHistoryListResponse(events []domain.HistoryEvent) HistoryListResponse {
	payloads := make([]HistoryEventPayload, 0, len(events))
	for _, event := range events {
		payloads = append(payloads, newHistoryEventPayload(event))
	}
	return HistoryListResponse{Events: payloads, Total: len(payloads)}
}

func writeCSVResponse(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

func respondHistoryError(c *gin.Context, err error, fallback string) {
	cases := []ErrorCase{
		{Err: usecase.ErrAccessDenied, Status: http.StatusForbidden, Message: "access denied"},
		{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	}
	RespondWithMappedError(c, err, cases, http.StatusInternalServerError, fallback)
}
