package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// SubmissionRepository implements port.SubmissionRepository for PostgreSQL.
type SubmissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSubmissionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSubmissionRepository(exec pgExecutor) *SubmissionRepository {
	return &SubmissionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a submission. The global sequence number comes from the
// database sequence and is written back to the supplied submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	fields, err := marshalSnapshot(submission.Fields)
	if err != nil {
		return err
	}

	const insertSQL = `
		INSERT INTO fieldops.submissions (id, site_id, program_id, sequence, fields, created_by, created_at)
		VALUES ($1, $2, $3, nextval('fieldops.submission_sequence'), $4, $5, $6)
		RETURNING sequence`

	row := executor(ctx, r.exec).QueryRow(ctx, insertSQL,
		submission.ID,
		submission.SiteID,
		submission.ProgramID,
		fields,
		submission.CreatedBy,
		submission.CreatedAt,
	)
	if err := row.Scan(&submission.Sequence); err != nil {
		return fmt.Errorf("insert submission: %w", translateError(err))
	}

	return nil
}

// GetByID returns a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, submissionID string) (*domain.Submission, error) {
	sql, args, err := r.builder.
		Select("id", "site_id", "program_id", "sequence", "fields", "created_by", "created_at").
		From("fieldops.submissions").
		Where(squirrel.Eq{"id": submissionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select submission sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)

	var (
		submission domain.Submission
		fields     []byte
	)
	if err := row.Scan(
		&submission.ID,
		&submission.SiteID,
		&submission.ProgramID,
		&submission.Sequence,
		&fields,
		&submission.CreatedBy,
		&submission.CreatedAt,
	); err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}

	if submission.Fields, err = unmarshalSnapshot(fields); err != nil {
		return nil, err
	}

	return &submission, nil
}

var _ port.SubmissionRepository = (*SubmissionRepository)(nil)
