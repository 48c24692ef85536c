package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	startedAt := time.Now().UTC()
	session := domain.VisitSession{
		ID:             "session-1",
		SubmissionID:   "submission-1",
		SiteID:         "site-1",
		ProgramID:      "program-1",
		State:          domain.VisitOpened,
		OpenedBy:       "user-1",
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
	}

	mock.ExpectExec(`INSERT INTO fieldops\.visit_sessions`).
		WithArgs(
			session.ID,
			session.SubmissionID,
			session.SiteID,
			session.ProgramID,
			session.State,
			session.OpenedBy,
			[]string{},
			session.PercentComplete,
			session.StartedAt,
			session.LastActivityAt,
			(*time.Time)(nil),
			(*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_CreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	session := domain.VisitSession{
		ID:             "session-dup",
		SubmissionID:   "submission-1",
		SiteID:         "site-1",
		ProgramID:      "program-1",
		State:          domain.VisitOpened,
		OpenedBy:       "user-2",
		StartedAt:      now,
		LastActivityAt: now,
	}

	mock.ExpectExec(`INSERT INTO fieldops\.visit_sessions`).
		WithArgs(
			session.ID,
			session.SubmissionID,
			session.SiteID,
			session.ProgramID,
			session.State,
			session.OpenedBy,
			[]string{},
			session.PercentComplete,
			session.StartedAt,
			session.LastActivityAt,
			(*time.Time)(nil),
			(*string)(nil),
		).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err = repo.Create(context.Background(), session)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetBySubmission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(sessionColumns).AddRow(
		"session-1", "submission-1", "site-1", "program-1", domain.VisitWorking,
		"user-1", []string{"user-2"}, 40.0, now, now, nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM fieldops\.visit_sessions`).
		WithArgs("submission-1").
		WillReturnRows(rows)

	session, err := repo.GetBySubmission(context.Background(), "submission-1")
	if err != nil {
		t.Fatalf("GetBySubmission returned error: %v", err)
	}
	if session.ID != "session-1" {
		t.Fatalf("expected session-1, got %s", session.ID)
	}
	if len(session.SharedWith) != 1 || session.SharedWith[0] != "user-2" {
		t.Fatalf("expected shared_with to round-trip, got %+v", session.SharedWith)
	}
	if session.State != domain.VisitWorking {
		t.Fatalf("expected working state, got %s", session.State)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_UpdateTerminalRowUntouched(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	session := domain.VisitSession{
		ID:              "session-9",
		State:           domain.VisitWorking,
		PercentComplete: 10,
		LastActivityAt:  now,
	}

	mock.ExpectExec(`UPDATE fieldops\.visit_sessions`).
		WithArgs(
			session.State,
			[]string{},
			session.PercentComplete,
			session.LastActivityAt,
			(*time.Time)(nil),
			(*string)(nil),
			session.ID,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Update(context.Background(), session); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound when no non-terminal row matched, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_ListActiveByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(sessionColumns).AddRow(
		"session-2", "submission-2", "site-1", "program-1", domain.VisitShared,
		"user-3", []string{"user-1"}, 60.0, now, now, nil, nil,
	).AddRow(
		"session-1", "submission-1", "site-1", "program-1", domain.VisitOpened,
		"user-1", []string{}, 0.0, now.Add(-time.Hour), now.Add(-time.Hour), nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM fieldops\.visit_sessions`).
		WithArgs("user-1", "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	sessions, err := repo.ListActiveByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListActiveByUser returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected two sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "session-2" || sessions[1].ID != "session-1" {
		t.Fatalf("unexpected session order: %+v", sessions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_ListStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	cutoff := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	startedAt := cutoff.Add(-6 * time.Hour)

	rows := pgxmock.NewRows(sessionColumns).AddRow(
		"session-old", "submission-old", "site-1", "program-1", domain.VisitWorking,
		"user-1", []string{}, 100.0, startedAt, startedAt, nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM fieldops\.visit_sessions`).
		WithArgs(cutoff, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	sessions, err := repo.ListStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ListStale returned error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "session-old" {
		t.Fatalf("unexpected stale sessions: %+v", sessions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
