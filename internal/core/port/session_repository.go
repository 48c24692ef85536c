package port

import (
	"context"
	"time"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// SessionRepository deals with visit-session storage. Create surfaces
// repository.ErrConflict when a session already exists for the submission;
// the uniqueness lives in the storage layer, not in a check-then-insert.
type SessionRepository interface {
	Create(ctx context.Context, session domain.VisitSession) error
	GetByID(ctx context.Context, sessionID string) (*domain.VisitSession, error)
	GetBySubmission(ctx context.Context, submissionID string) (*domain.VisitSession, error)
	// Update persists mutable session fields guarded on the session still
	// being non-terminal; returns repository.ErrNotFound when the guard
	// matches no row.
	Update(ctx context.Context, session domain.VisitSession) error
	ListActiveByUser(ctx context.Context, userID string) ([]domain.VisitSession, error)
	// ListStale returns non-terminal sessions started before the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]domain.VisitSession, error)
}
