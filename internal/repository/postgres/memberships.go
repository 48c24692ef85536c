package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// MembershipRepository implements port.MembershipRepository for PostgreSQL.
type MembershipRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMembershipRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewMembershipRepository(exec pgExecutor) *MembershipRepository {
	return &MembershipRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var membershipColumns = []string{"program_id", "user_id", "role", "assigned_at"}

// Get returns the membership for the (program, user) pair.
func (r *MembershipRepository) Get(ctx context.Context, programID, userID string) (*domain.ProgramMembership, error) {
	sql, args, err := r.builder.
		Select(membershipColumns...).
		From("fieldops.program_memberships").
		Where(squirrel.Eq{"program_id": programID, "user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select membership sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)

	var m domain.ProgramMembership
	if err := row.Scan(&m.ProgramID, &m.UserID, &m.Role, &m.AssignedAt); err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}

	return &m, nil
}

// ListByUser returns every membership held by the user.
func (r *MembershipRepository) ListByUser(ctx context.Context, userID string) ([]domain.ProgramMembership, error) {
	sql, args, err := r.builder.
		Select(membershipColumns...).
		From("fieldops.program_memberships").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("assigned_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list memberships sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []domain.ProgramMembership
	for rows.Next() {
		var m domain.ProgramMembership
		if err := rows.Scan(&m.ProgramID, &m.UserID, &m.Role, &m.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return memberships, nil
}

// Upsert creates or replaces the membership row.
func (r *MembershipRepository) Upsert(ctx context.Context, membership domain.ProgramMembership) error {
	assignedAt := membership.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}

	sql, args, err := r.builder.
		Insert("fieldops.program_memberships").
		Columns(membershipColumns...).
		Values(membership.ProgramID, membership.UserID, membership.Role, assignedAt).
		Suffix("ON CONFLICT (program_id, user_id) DO UPDATE SET role = EXCLUDED.role").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert membership sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// Delete removes the membership row.
func (r *MembershipRepository) Delete(ctx context.Context, programID, userID string) error {
	sql, args, err := r.builder.
		Delete("fieldops.program_memberships").
		Where(squirrel.Eq{"program_id": programID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete membership sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DemoteAllForUser forces every membership of the user to the supplied role,
// returning the rows as they were before the change.
func (r *MembershipRepository) DemoteAllForUser(ctx context.Context, userID string, to domain.Role) ([]domain.ProgramMembership, error) {
	prior, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.builder.
		Update("fieldops.program_memberships").
		Set("role", to).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.NotEq{"role": to}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build demote memberships sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("demote memberships: %w", err)
	}

	return prior, nil
}

var _ port.MembershipRepository = (*MembershipRepository)(nil)
