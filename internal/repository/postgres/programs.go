package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// ProgramRepository implements port.ProgramRepository for PostgreSQL.
type ProgramRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProgramRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewProgramRepository(exec pgExecutor) *ProgramRepository {
	return &ProgramRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var programColumns = []string{
	"id",
	"name",
	"company_id",
	"site_count",
	"submission_count",
	"created_at",
}

// GetByID returns a program by identifier.
func (r *ProgramRepository) GetByID(ctx context.Context, programID string) (*domain.Program, error) {
	sql, args, err := r.builder.
		Select(programColumns...).
		From("fieldops.programs").
		Where(squirrel.Eq{"id": programID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select program sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)

	var program domain.Program
	if err := row.Scan(
		&program.ID,
		&program.Name,
		&program.CompanyID,
		&program.SiteCount,
		&program.SubmissionCount,
		&program.CreatedAt,
	); err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan program: %w", err)
	}

	return &program, nil
}

// AddSubmissionCount adjusts the cached submission counter by delta.
func (r *ProgramRepository) AddSubmissionCount(ctx context.Context, programID string, delta int) error {
	sql, args, err := r.builder.
		Update("fieldops.programs").
		Set("submission_count", squirrel.Expr("submission_count + ?", delta)).
		Where(squirrel.Eq{"id": programID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update submission count sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update submission count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Recount recomputes both roll-up counters from live child rows.
func (r *ProgramRepository) Recount(ctx context.Context, programID string) (*domain.Program, error) {
	const recountSQL = `
		UPDATE fieldops.programs p SET
			site_count = (SELECT COUNT(*) FROM fieldops.sites s WHERE s.program_id = p.id),
			submission_count = (SELECT COUNT(*) FROM fieldops.submissions sub WHERE sub.program_id = p.id)
		WHERE p.id = $1`

	tag, err := executor(ctx, r.exec).Exec(ctx, recountSQL, programID)
	if err != nil {
		return nil, fmt.Errorf("recount program: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}

	return r.GetByID(ctx, programID)
}

var _ port.ProgramRepository = (*ProgramRepository)(nil)
