package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

func newHistoryService(t *testing.T, repo *fakeHistoryRepository, users *fakeUserRepository, programs *fakeProgramRepository, publisher *fakeEventPublisher) *HistoryService {
	t.Helper()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return NewHistoryService(repo, users, programs, publisher, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return now })
}

func TestRecordSkipsWithoutPrincipal(t *testing.T) {
	repo := &fakeHistoryRepository{}
	service := newHistoryService(t, repo, newFakeUserRepository(), newFakeProgramRepository(), nil)

	err := service.Record(context.Background(), Mutation{
		Kind:       domain.HistoryUpdated,
		ObjectType: domain.ObjectSession,
		ObjectID:   "session-1",
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected unattributed write skipped, got %d events", len(repo.events))
	}
}

func TestRecordSnapshotsActorAndMeta(t *testing.T) {
	repo := &fakeHistoryRepository{}
	publisher := &fakeEventPublisher{}
	service := newHistoryService(t, repo, newFakeUserRepository(), newFakeProgramRepository(), publisher)

	programID := "program-1"
	requestID := "req-9"
	principal := domain.Principal{
		UserID:      "user-1",
		Email:       "user@acme.test",
		CompanyID:   strPtr("company-1"),
		Active:      true,
		Memberships: map[string]domain.Role{"program-1": domain.RoleAdmin},
	}

	ctx := WithPrincipal(context.Background(), principal)
	ctx = WithRequestMeta(ctx, RequestMeta{RequestID: &requestID})

	err := service.Record(ctx, Mutation{
		Kind:       domain.HistoryUpdated,
		ObjectType: domain.ObjectSession,
		ObjectID:   "session-1",
		ProgramID:  &programID,
		Before:     map[string]any{"state": "opened"},
		After:      map[string]any{"state": "working"},
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected one event, got %d", len(repo.events))
	}
	event := repo.events[0]
	if event.ActorUserID != "user-1" || event.ActorEmail != "user@acme.test" {
		t.Fatalf("unexpected actor snapshot: %+v", event)
	}
	if event.ActorRole != string(domain.RoleAdmin) {
		t.Fatalf("expected program role snapshotted, got %s", event.ActorRole)
	}
	if event.RequestID == nil || *event.RequestID != requestID {
		t.Fatalf("expected request id carried, got %+v", event.RequestID)
	}

	if len(publisher.historyEvents) != 1 || publisher.historyEvents[0].HistoryID != event.ID {
		t.Fatalf("expected history event published, got %+v", publisher.historyEvents)
	}
}

func TestQueryProgramHistoryAuthorization(t *testing.T) {
	repo := &fakeHistoryRepository{}
	programs := newFakeProgramRepository(domain.Program{ID: "program-1", CompanyID: strPtr("company-1")})
	service := newHistoryService(t, repo, newFakeUserRepository(), programs, nil)

	programID := "program-1"
	repo.events = append(repo.events, domain.HistoryEvent{
		ID: "event-1", Kind: domain.HistoryCreated, ObjectType: domain.ObjectSession,
		ObjectID: "session-1", ProgramID: &programID, ActorUserID: "user-1",
	})

	editor := domain.Principal{
		UserID: "user-2", Active: true,
		Memberships: map[string]domain.Role{"program-1": domain.RoleEdit},
	}
	if _, err := service.QueryProgramHistory(context.Background(), editor, "program-1", domain.HistoryFilter{}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected editor denied, got %v", err)
	}

	admin := domain.Principal{
		UserID: "user-3", Active: true,
		Memberships: map[string]domain.Role{"program-1": domain.RoleAdmin},
	}
	events, err := service.QueryProgramHistory(context.Background(), admin, "program-1", domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("QueryProgramHistory returned error: %v", err)
	}
	if len(events) != 1 || events[0].ID != "event-1" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestQueryUserHistoryAuthorization(t *testing.T) {
	repo := &fakeHistoryRepository{}
	users := newFakeUserRepository(domain.User{ID: "subject-1", CompanyID: strPtr("company-1"), Active: true})
	service := newHistoryService(t, repo, users, newFakeProgramRepository(), nil)

	repo.events = append(repo.events, domain.HistoryEvent{
		ID: "event-1", Kind: domain.HistoryUpdated, ObjectType: domain.ObjectUser,
		ObjectID: "subject-1", ActorUserID: "admin-1",
	})

	foreignAdmin := domain.Principal{UserID: "a1", Active: true, CompanyID: strPtr("company-2"), CompanyAdmin: true}
	if _, err := service.QueryUserHistory(context.Background(), foreignAdmin, "subject-1", domain.HistoryFilter{}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected foreign company admin denied, got %v", err)
	}

	companyAdmin := domain.Principal{UserID: "a2", Active: true, CompanyID: strPtr("company-1"), CompanyAdmin: true}
	events, err := service.QueryUserHistory(context.Background(), companyAdmin, "subject-1", domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("QueryUserHistory returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the subject's event, got %+v", events)
	}
}

func TestExportProgramHistoryCSV(t *testing.T) {
	repo := &fakeHistoryRepository{}
	programs := newFakeProgramRepository(domain.Program{ID: "program-1", CompanyID: strPtr("company-1")})
	service := newHistoryService(t, repo, newFakeUserRepository(), programs, nil)

	programID := "program-1"
	repo.events = append(repo.events, domain.HistoryEvent{
		ID: "event-1", Kind: domain.HistoryUpdated, ObjectType: domain.ObjectSession,
		ObjectID: "session-1", ProgramID: &programID,
		ActorUserID: "user-1", ActorEmail: "user@acme.test", ActorRole: "admin",
		Before:    map[string]any{"state": "opened", "percent_complete": 0},
		After:     map[string]any{"state": "working", "percent_complete": 0},
		CreatedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	})

	admin := domain.Principal{
		UserID: "user-3", Active: true,
		Memberships: map[string]domain.Role{"program-1": domain.RoleAdmin},
	}

	var buf bytes.Buffer
	if err := service.ExportProgramHistoryCSV(context.Background(), admin, "program-1", domain.HistoryFilter{}, &buf); err != nil {
		t.Fatalf("ExportProgramHistoryCSV returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one record, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,created_at,kind") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "state: opened->working") {
		t.Fatalf("expected field-level diff in summary, got: %s", lines[1])
	}
	if strings.Contains(lines[1], "percent_complete") {
		t.Fatalf("expected unchanged fields omitted from summary, got: %s", lines[1])
	}
}
