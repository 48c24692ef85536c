package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// Mutation describes one tracked entity change for the audit ledger. The
// caller resolves the owning program and site once and passes them down; the
// ledger never re-walks the ancestry chain per entity.
type Mutation struct {
	Kind       domain.HistoryKind
	ObjectType string
	ObjectID   string
	ProgramID  *string
	SiteID     *string
	Before     map[string]any
	After      map[string]any
}

// HistoryService owns the audit ledger write and read paths.
type HistoryService struct {
	history   port.HistoryRepository
	users     port.UserRepository
	programs  port.ProgramRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(
	history port.HistoryRepository,
	users port.UserRepository,
	programs port.ProgramRepository,
	publisher port.EventPublisher,
	logger *zap.Logger,
) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HistoryService{
		history:   history,
		users:     users,
		programs:  programs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *HistoryService) WithClock(now func() time.Time) *HistoryService {
	if now != nil {
		s.now = now
	}
	return s
}

// Record appends one ledger entry for the mutation, snapshotting the actor
// from the context. When no principal is attached the write is skipped:
// background operations are deliberately unattributed and thus unlogged.
// Callers invoke Record inside the same transaction as the mutation itself.
func (s *HistoryService) Record(ctx context.Context, mutation Mutation) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		s.logger.Debug("history write skipped: no principal on context",
			zap.String("object_type", mutation.ObjectType),
			zap.String("object_id", mutation.ObjectID),
		)
		return nil
	}

	meta := RequestMetaFrom(ctx)
	event := domain.HistoryEvent{
		ID:             uuid.NewString(),
		Kind:           mutation.Kind,
		ObjectType:     mutation.ObjectType,
		ObjectID:       mutation.ObjectID,
		ProgramID:      mutation.ProgramID,
		SiteID:         mutation.SiteID,
		ActorUserID:    principal.UserID,
		ActorEmail:     principal.Email,
		ActorCompanyID: principal.CompanyID,
		ActorRole:      actorRole(principal, mutation.ProgramID),
		Before:         mutation.Before,
		After:          mutation.After,
		RequestID:      meta.RequestID,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.history.Append(ctx, event); err != nil {
		return fmt.Errorf("append history event: %w", err)
	}

	if s.publisher != nil {
		published := domain.HistoryAppendedEvent{
			EventID:     uuid.NewString(),
			HistoryID:   event.ID,
			Kind:        event.Kind,
			ObjectType:  event.ObjectType,
			ObjectID:    event.ObjectID,
			ProgramID:   event.ProgramID,
			ActorUserID: event.ActorUserID,
			At:          event.CreatedAt,
		}
		if err := s.publisher.PublishHistoryAppended(ctx, published); err != nil {
			s.logger.Warn("publish history event failed", zap.String("history_id", event.ID), zap.Error(err))
		}
	}

	return nil
}

// QueryProgramHistory returns the program's ledger entries, restricted to
// program admins and company admins of the owning company.
func (s *HistoryService) QueryProgramHistory(ctx context.Context, principal domain.Principal, programID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	programID = strings.TrimSpace(programID)
	if programID == "" {
		return nil, fmt.Errorf("program id is required")
	}

	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}

	if !domain.CanViewHistory(principal, program.Resource()) {
		return nil, ErrAccessDenied
	}

	events, err := s.history.QueryByProgram(ctx, programID, filter)
	if err != nil {
		return nil, fmt.Errorf("query program history: %w", err)
	}
	return events, nil
}

// QueryUserHistory returns entries where the user acted or was acted upon,
// restricted to company admins of that user's company.
func (s *HistoryService) QueryUserHistory(ctx context.Context, principal domain.Principal, userID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	subject, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !domain.CanViewUserHistory(principal, *subject) {
		return nil, ErrAccessDenied
	}

	events, err := s.history.QueryByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("query user history: %w", err)
	}
	return events, nil
}

var historyCSVHeader = []string{
	"id", "created_at", "kind", "object_type", "object_id",
	"program_id", "site_id", "actor_user_id", "actor_email", "actor_role", "summary",
}

// ExportProgramHistoryCSV writes the query result as delimited text with a
// per-entry human-readable change summary.
func (s *HistoryService) ExportProgramHistoryCSV(ctx context.Context, principal domain.Principal, programID string, filter domain.HistoryFilter, w io.Writer) error {
	events, err := s.QueryProgramHistory(ctx, principal, programID, filter)
	if err != nil {
		return err
	}
	return writeHistoryCSV(w, events)
}

// ExportUserHistoryCSV writes the user-scoped query result as delimited text.
func (s *HistoryService) ExportUserHistoryCSV(ctx context.Context, principal domain.Principal, userID string, filter domain.HistoryFilter, w io.Writer) error {
	events, err := s.QueryUserHistory(ctx, principal, userID, filter)
	if err != nil {
		return err
	}
	return writeHistoryCSV(w, events)
}

func writeHistoryCSV(w io.Writer, events []domain.HistoryEvent) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, event := range events {
		record := []string{
			event.ID,
			event.CreatedAt.UTC().Format(time.RFC3339),
			string(event.Kind),
			event.ObjectType,
			event.ObjectID,
			deref(event.ProgramID),
			deref(event.SiteID),
			event.ActorUserID,
			event.ActorEmail,
			event.ActorRole,
			summarizeChange(event),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// summarizeChange renders one line per event: the new image for creates, the
// prior image for deletes, and a field-level old->new diff for updates.
func summarizeChange(event domain.HistoryEvent) string {
	switch event.Kind {
	case domain.HistoryCreated:
		return formatSnapshot(event.After)
	case domain.HistoryDeleted:
		return formatSnapshot(event.Before)
	default:
		return formatDiff(event.Before, event.After)
	}
}

func formatSnapshot(snap map[string]any) string {
	if len(snap) == 0 {
		return ""
	}
	keys := make([]string, 0, len(snap))
	for key := range snap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, snap[key]))
	}
	return strings.Join(parts, "; ")
}

func formatDiff(before, after map[string]any) string {
	keys := make(map[string]struct{}, len(before)+len(after))
	for key := range before {
		keys[key] = struct{}{}
	}
	for key := range after {
		keys[key] = struct{}{}
	}

	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	var parts []string
	for _, key := range ordered {
		prev, hadPrev := before[key]
		next, hasNext := after[key]
		switch {
		case !hadPrev:
			parts = append(parts, fmt.Sprintf("%s: ->%v", key, next))
		case !hasNext:
			parts = append(parts, fmt.Sprintf("%s: %v->", key, prev))
		case fmt.Sprintf("%v", prev) != fmt.Sprintf("%v", next):
			parts = append(parts, fmt.Sprintf("%s: %v->%v", key, prev, next))
		}
	}
	return strings.Join(parts, "; ")
}

// actorRole snapshots the role the actor held at write time: the program
// membership when one exists, otherwise the strongest global flag.
func actorRole(principal domain.Principal, programID *string) string {
	if programID != nil {
		if role, ok := principal.RoleIn(*programID); ok {
			return string(role)
		}
	}
	if principal.SuperAdmin {
		return "super_admin"
	}
	if principal.CompanyAdmin {
		return "company_admin"
	}
	return "member"
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
