package port

import (
	"context"
	"time"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// SubmissionRepository deals with submission storage. Create assigns the
// global sequence number and writes it back to the supplied submission.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *domain.Submission) error
	GetByID(ctx context.Context, submissionID string) (*domain.Submission, error)
}

// ObservationRepository deals with the classified samples attached to
// submissions.
type ObservationRepository interface {
	CreateBatch(ctx context.Context, observations []domain.Observation) error
	GetByID(ctx context.Context, observationID string) (*domain.Observation, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]domain.Observation, error)
	// Counts returns the expected (total) and completed observation counts
	// for the submission.
	Counts(ctx context.Context, submissionID string) (expected, completed int, err error)
	// ListPending returns observations of the submission that have no
	// confirmed media reference yet.
	ListPending(ctx context.Context, submissionID string) ([]domain.Observation, error)
	DeleteByID(ctx context.Context, observationID string) error
	SetMedia(ctx context.Context, observationID, mediaRef string, completedAt time.Time) error
	// RepairAncestry realigns every observation's denormalized site and
	// program references with its submission's, returning the number of rows
	// fixed.
	RepairAncestry(ctx context.Context) (int, error)
}
