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

// ObservationRepository implements port.ObservationRepository for PostgreSQL.
type ObservationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewObservationRepository constructs a repository backed by any executor
// that satisfies pgExecutor.
func NewObservationRepository(exec pgExecutor) *ObservationRepository {
	return &ObservationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var observationColumns = []string{
	"id",
	"submission_id",
	"site_id",
	"program_id",
	"kind",
	"template_data",
	"media_ref",
	"completed_at",
	"created_at",
}

// CreateBatch inserts the supplied observations in one statement.
func (r *ObservationRepository) CreateBatch(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	insert := r.builder.Insert("fieldops.observations").Columns(observationColumns...)
	for _, obs := range observations {
		templateData, err := marshalSnapshot(obs.TemplateData)
		if err != nil {
			return err
		}
		insert = insert.Values(
			obs.ID,
			obs.SubmissionID,
			obs.SiteID,
			obs.ProgramID,
			obs.Kind,
			templateData,
			obs.MediaRef,
			obs.CompletedAt,
			obs.CreatedAt,
		)
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert observations sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}
	return nil
}

// GetByID returns an observation by identifier.
func (r *ObservationRepository) GetByID(ctx context.Context, observationID string) (*domain.Observation, error) {
	sql, args, err := r.builder.
		Select(observationColumns...).
		From("fieldops.observations").
		Where(squirrel.Eq{"id": observationID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select observation sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)
	obs, err := scanObservation(row)
	if err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan observation: %w", err)
	}
	return obs, nil
}

// ListBySubmission returns every observation attached to the submission.
func (r *ObservationRepository) ListBySubmission(ctx context.Context, submissionID string) ([]domain.Observation, error) {
	return r.list(ctx, squirrel.Eq{"submission_id": submissionID})
}

// ListPending returns the submission's observations without a confirmed media
// reference.
func (r *ObservationRepository) ListPending(ctx context.Context, submissionID string) ([]domain.Observation, error) {
	return r.list(ctx, squirrel.And{
		squirrel.Eq{"submission_id": submissionID},
		squirrel.Expr("completed_at IS NULL"),
	})
}

func (r *ObservationRepository) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.Observation, error) {
	sql, args, err := r.builder.
		Select(observationColumns...).
		From("fieldops.observations").
		Where(where).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list observations sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, *obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// Counts returns the expected (total) and completed observation counts for
// the submission.
func (r *ObservationRepository) Counts(ctx context.Context, submissionID string) (int, int, error) {
	const countSQL = `
		SELECT COUNT(*), COUNT(completed_at)
		FROM fieldops.observations
		WHERE submission_id = $1`

	var expected, completed int
	row := executor(ctx, r.exec).QueryRow(ctx, countSQL, submissionID)
	if err := row.Scan(&expected, &completed); err != nil {
		return 0, 0, fmt.Errorf("count observations: %w", err)
	}
	return expected, completed, nil
}

// DeleteByID removes a single observation.
func (r *ObservationRepository) DeleteByID(ctx context.Context, observationID string) error {
	sql, args, err := r.builder.
		Delete("fieldops.observations").
		Where(squirrel.Eq{"id": observationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete observation sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete observation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetMedia confirms the observation's media reference and stamps completion.
func (r *ObservationRepository) SetMedia(ctx context.Context, observationID, mediaRef string, completedAt time.Time) error {
	sql, args, err := r.builder.
		Update("fieldops.observations").
		Set("media_ref", mediaRef).
		Set("completed_at", completedAt).
		Where(squirrel.Eq{"id": observationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update observation media sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update observation media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RepairAncestry realigns every observation's denormalized site and program
// references with its submission's, returning the number of rows fixed.
func (r *ObservationRepository) RepairAncestry(ctx context.Context) (int, error) {
	const repairSQL = `
		UPDATE fieldops.observations o
		SET site_id = s.site_id, program_id = s.program_id
		FROM fieldops.submissions s
		WHERE o.submission_id = s.id
		  AND (o.site_id <> s.site_id OR o.program_id <> s.program_id)`

	tag, err := executor(ctx, r.exec).Exec(ctx, repairSQL)
	if err != nil {
		return 0, fmt.Errorf("repair observation ancestry: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*domain.Observation, error) {
	var (
		obs          domain.Observation
		templateData []byte
	)
	if err := row.Scan(
		&obs.ID,
		&obs.SubmissionID,
		&obs.SiteID,
		&obs.ProgramID,
		&obs.Kind,
		&templateData,
		&obs.MediaRef,
		&obs.CompletedAt,
		&obs.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if obs.TemplateData, err = unmarshalSnapshot(templateData); err != nil {
		return nil, err
	}
	return &obs, nil
}

var _ port.ObservationRepository = (*ObservationRepository)(nil)
