package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
)

const defaultHistoryLimit = 100

// HistoryRepository implements port.HistoryRepository for PostgreSQL. The
// ledger table is append-only; nothing here updates or deletes rows.
type HistoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewHistoryRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewHistoryRepository(exec pgExecutor) *HistoryRepository {
	return &HistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var historyColumns = []string{
	"id",
	"kind",
	"object_type",
	"object_id",
	"program_id",
	"site_id",
	"actor_user_id",
	"actor_email",
	"actor_company_id",
	"actor_role",
	"before_snapshot",
	"after_snapshot",
	"request_id",
	"ip_address",
	"user_agent",
	"created_at",
}

// Append writes one ledger entry.
func (r *HistoryRepository) Append(ctx context.Context, event domain.HistoryEvent) error {
	before, err := marshalSnapshot(event.Before)
	if err != nil {
		return err
	}
	after, err := marshalSnapshot(event.After)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.
		Insert("fieldops.history_events").
		Columns(historyColumns...).
		Values(
			event.ID,
			event.Kind,
			event.ObjectType,
			event.ObjectID,
			event.ProgramID,
			event.SiteID,
			event.ActorUserID,
			event.ActorEmail,
			event.ActorCompanyID,
			event.ActorRole,
			before,
			after,
			event.RequestID,
			event.IPAddress,
			event.UserAgent,
			event.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert history event sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert history event: %w", err)
	}
	return nil
}

// QueryByProgram returns the program's ledger entries, newest first.
func (r *HistoryRepository) QueryByProgram(ctx context.Context, programID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	return r.query(ctx, squirrel.Eq{"program_id": programID}, filter)
}

// QueryByUser returns entries where the user acted or was acted upon, newest
// first. Subject rows are those whose object is the user itself.
func (r *HistoryRepository) QueryByUser(ctx context.Context, userID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	where := squirrel.Or{
		squirrel.Eq{"actor_user_id": userID},
		squirrel.Eq{"object_type": domain.ObjectUser, "object_id": userID},
	}
	return r.query(ctx, where, filter)
}

func (r *HistoryRepository) query(ctx context.Context, where squirrel.Sqlizer, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := r.builder.
		Select(historyColumns...).
		From("fieldops.history_events").
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}
	if filter.SiteID != nil {
		query = query.Where(squirrel.Eq{"site_id": *filter.SiteID})
	}
	if filter.ObjectType != nil {
		query = query.Where(squirrel.Eq{"object_type": *filter.ObjectType})
	}
	if filter.Kind != nil {
		query = query.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.ActorUserID != nil {
		query = query.Where(squirrel.Eq{"actor_user_id": *filter.ActorUserID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query history sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query history events: %w", err)
	}
	defer rows.Close()

	var events []domain.HistoryEvent
	for rows.Next() {
		var (
			event  domain.HistoryEvent
			before []byte
			after  []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.Kind,
			&event.ObjectType,
			&event.ObjectID,
			&event.ProgramID,
			&event.SiteID,
			&event.ActorUserID,
			&event.ActorEmail,
			&event.ActorCompanyID,
			&event.ActorRole,
			&before,
			&after,
			&event.RequestID,
			&event.IPAddress,
			&event.UserAgent,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		if event.Before, err = unmarshalSnapshot(before); err != nil {
			return nil, err
		}
		if event.After, err = unmarshalSnapshot(after); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history events: %w", err)
	}

	return events, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
