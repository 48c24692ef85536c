package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	State   string `json:"state,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// SessionPayload is the API view of a visit session.
type SessionPayload struct {
	ID              string     `json:"id"`
	SubmissionID    string     `json:"submission_id"`
	SiteID          string     `json:"site_id"`
	ProgramID       string     `json:"program_id"`
	State           string     `json:"state"`
	OpenedBy        string     `json:"opened_by"`
	SharedWith      []string   `json:"shared_with"`
	PercentComplete float64    `json:"percent_complete"`
	StartedAt       time.Time  `json:"started_at"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CompletedBy     *string    `json:"completed_by,omitempty"`
}

func newSessionPayload(session domain.VisitSession) SessionPayload {
	shared := session.SharedWith
	if shared == nil {
		shared = []string{}
	}

	return SessionPayload{
		ID:              session.ID,
		SubmissionID:    session.SubmissionID,
		SiteID:          session.SiteID,
		ProgramID:       session.ProgramID,
		State:           string(session.State),
		OpenedBy:        session.OpenedBy,
		SharedWith:      shared,
		PercentComplete: session.PercentComplete,
		StartedAt:       session.StartedAt,
		LastActivityAt:  session.LastActivityAt,
		CompletedAt:     session.CompletedAt,
		CompletedBy:     session.CompletedBy,
	}
}

// SessionCreateRequest defines the payload for opening a visit session.
type SessionCreateRequest struct {
	SiteID            string           `json:"site_id" binding:"required"`
	Fields            map[string]any   `json:"fields"`
	PetriTemplates    []map[string]any `json:"petri_templates"`
	GasifierTemplates []map[string]any `json:"gasifier_templates"`
}

// SessionCreateResponse is returned for a successfully opened session.
type SessionCreateResponse struct {
	Session      SessionPayload `json:"session"`
	SubmissionID string         `json:"submission_id"`
	Sequence     int64          `json:"sequence"`
}

// SessionShareRequest defines the payload for sharing or escalating a session.
type SessionShareRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
	Intent  string   `json:"intent"`
}

// SessionCancelResponse reports the cancelled session and discarded pending
// observation counts.
type SessionCancelResponse struct {
	Session         SessionPayload `json:"session"`
	DeletedPetri    int            `json:"deleted_petri"`
	DeletedGasifier int            `json:"deleted_gasifier"`
}

// SessionListResponse wraps the active session listing.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// ObservationMediaRequest confirms a captured media reference.
type ObservationMediaRequest struct {
	MediaRef string `json:"media_ref" binding:"required"`
}

// PermissionsResponse is the per-program capability summary.
type PermissionsResponse struct {
	ProgramID        string `json:"program_id"`
	CanRead          bool   `json:"can_read"`
	CanWrite         bool   `json:"can_write"`
	CanManageMembers bool   `json:"can_manage_members"`
}

// MembershipUpsertRequest grants or changes a program role.
type MembershipUpsertRequest struct {
	Role string `json:"role" binding:"required"`
}

// MembershipPayload is the API view of a program membership.
type MembershipPayload struct {
	ProgramID  string    `json:"program_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ProgramPayload is the API view of a program with its roll-up counters.
type ProgramPayload struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	CompanyID       *string `json:"company_id,omitempty"`
	SiteCount       int     `json:"site_count"`
	SubmissionCount int     `json:"submission_count"`
}

// UserPayload is the API view of a user account.
type UserPayload struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	CompanyID    *string `json:"company_id,omitempty"`
	CompanyAdmin bool    `json:"company_admin"`
	SuperAdmin   bool    `json:"super_admin"`
	Active       bool    `json:"active"`
}

// HistoryEventPayload is the API view of one audit ledger entry.
type HistoryEventPayload struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	ObjectType     string         `json:"object_type"`
	ObjectID       string         `json:"object_id"`
	ProgramID      *string        `json:"program_id,omitempty"`
	SiteID         *string        `json:"site_id,omitempty"`
	ActorUserID    string         `json:"actor_user_id"`
	ActorEmail     string         `json:"actor_email"`
	ActorCompanyID *string        `json:"actor_company_id,omitempty"`
	ActorRole      string         `json:"actor_role"`
	Before         map[string]any `json:"before,omitempty"`
	After          map[string]any `json:"after,omitempty"`
	RequestID      *string        `json:"request_id,omitempty"`
	IPAddress      *string        `json:"ip_address,omitempty"`
	UserAgent      *string        `json:"user_agent,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func newHistoryEventPayload(event domain.HistoryEvent) HistoryEventPayload {
	return HistoryEventPayload{
		ID:             event.ID,
		Kind:           string(event.Kind),
		ObjectType:     event.ObjectType,
		ObjectID:       event.ObjectID,
		ProgramID:      event.ProgramID,
		SiteID:         event.SiteID,
		ActorUserID:    event.ActorUserID,
		ActorEmail:     event.ActorEmail,
		ActorCompanyID: event.ActorCompanyID,
		ActorRole:      event.ActorRole,
		Before:         event.Before,
		After:          event.After,
		RequestID:      event.RequestID,
		IPAddress:      event.IPAddress,
		UserAgent:      event.UserAgent,
		CreatedAt:      event.CreatedAt,
	}
}

// HistoryListResponse wraps a ledger query result.
type HistoryListResponse struct {
	Events []HistoryEventPayload `json:"events"`
	Total  int                   `json:"total"`
}

// SweepResponse summarizes a manually triggered expiration pass.
type SweepResponse struct {
	Scanned           int `json:"scanned"`
	ExpiredComplete   int `json:"expired_complete"`
	ExpiredIncomplete int `json:"expired_incomplete"`
}

// RepairResponse reports how many observation rows were re-anchored.
type RepairResponse struct {
	Fixed int `json:"fixed"`
}
