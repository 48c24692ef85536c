package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// SessionRepository implements port.SessionRepository for PostgreSQL. The
// one-session-per-submission invariant is the unique index on submission_id;
// Create surfaces its violation as repository.ErrConflict.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var sessionColumns = []string{
	"id",
	"submission_id",
	"site_id",
	"program_id",
	"state",
	"opened_by",
	"shared_with",
	"percent_complete",
	"started_at",
	"last_activity_at",
	"completed_at",
	"completed_by",
}

var terminalStates = []string{
	string(domain.VisitCompleted),
	string(domain.VisitCancelled),
	string(domain.VisitExpiredComplete),
	string(domain.VisitExpiredIncomplete),
}

// Create inserts a session record.
func (r *SessionRepository) Create(ctx context.Context, session domain.VisitSession) error {
	sql, args, err := r.builder.
		Insert("fieldops.visit_sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.SubmissionID,
			session.SiteID,
			session.ProgramID,
			session.State,
			session.OpenedBy,
			sharedWith(session.SharedWith),
			session.PercentComplete,
			session.StartedAt,
			session.LastActivityAt,
			session.CompletedAt,
			session.CompletedBy,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, sql, args...); err != nil {
		if translated := translateError(err); errors.Is(translated, repository.ErrConflict) {
			return translated
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID returns a session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.VisitSession, error) {
	return r.getOne(ctx, squirrel.Eq{"id": sessionID})
}

// GetBySubmission returns the session owning the submission.
func (r *SessionRepository) GetBySubmission(ctx context.Context, submissionID string) (*domain.VisitSession, error) {
	return r.getOne(ctx, squirrel.Eq{"submission_id": submissionID})
}

func (r *SessionRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.VisitSession, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("fieldops.visit_sessions").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)
	session, err := scanSession(row)
	if err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return session, nil
}

// Update persists mutable session fields. The statement is guarded on the
// stored state still being non-terminal, so a racing transition that already
// finalized the session leaves nothing to update.
func (r *SessionRepository) Update(ctx context.Context, session domain.VisitSession) error {
	sql, args, err := r.builder.
		Update("fieldops.visit_sessions").
		Set("state", session.State).
		Set("shared_with", sharedWith(session.SharedWith)).
		Set("percent_complete", session.PercentComplete).
		Set("last_activity_at", session.LastActivityAt).
		Set("completed_at", session.CompletedAt).
		Set("completed_by", session.CompletedBy).
		Where(squirrel.Eq{"id": session.ID}).
		Where(squirrel.NotEq{"state": terminalStates}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListActiveByUser returns non-terminal sessions the user opened or was
// shared into, most recently active first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.VisitSession, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("fieldops.visit_sessions").
		Where(squirrel.Or{
			squirrel.Eq{"opened_by": userID},
			squirrel.Expr("? = ANY(shared_with)", userID),
		}).
		Where(squirrel.NotEq{"state": terminalStates}).
		OrderBy("last_activity_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active sessions sql: %w", err)
	}

	return r.queryMany(ctx, sql, args)
}

// ListStale returns non-terminal sessions started before the cutoff, the
// sweeper's candidate set.
func (r *SessionRepository) ListStale(ctx context.Context, cutoff time.Time) ([]domain.VisitSession, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("fieldops.visit_sessions").
		Where(squirrel.Lt{"started_at": cutoff}).
		Where(squirrel.NotEq{"state": terminalStates}).
		OrderBy("started_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stale sessions sql: %w", err)
	}

	return r.queryMany(ctx, sql, args)
}

func (r *SessionRepository) queryMany(ctx context.Context, sql string, args []any) ([]domain.VisitSession, error) {
	rows, err := executor(ctx, r.exec).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.VisitSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*domain.VisitSession, error) {
	var session domain.VisitSession
	if err := row.Scan(
		&session.ID,
		&session.SubmissionID,
		&session.SiteID,
		&session.ProgramID,
		&session.State,
		&session.OpenedBy,
		&session.SharedWith,
		&session.PercentComplete,
		&session.StartedAt,
		&session.LastActivityAt,
		&session.CompletedAt,
		&session.CompletedBy,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func sharedWith(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ port.SessionRepository = (*SessionRepository)(nil)
