package port

import (
	"context"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// ProgramRepository deals with program storage and the cached roll-up
// counters.
type ProgramRepository interface {
	GetByID(ctx context.Context, programID string) (*domain.Program, error)
	// AddSubmissionCount adjusts the cached submission counter by delta.
	AddSubmissionCount(ctx context.Context, programID string, delta int) error
	// Recount recomputes both roll-up counters from live child rows and
	// returns the repaired program.
	Recount(ctx context.Context, programID string) (*domain.Program, error)
}

// MembershipRepository deals with (program, user) role assignments.
type MembershipRepository interface {
	Get(ctx context.Context, programID, userID string) (*domain.ProgramMembership, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ProgramMembership, error)
	Upsert(ctx context.Context, membership domain.ProgramMembership) error
	Delete(ctx context.Context, programID, userID string) error
	// DemoteAllForUser forces every membership of the user to the supplied
	// role and returns the rows as they were before the change.
	DemoteAllForUser(ctx context.Context, userID string, to domain.Role) ([]domain.ProgramMembership, error)
}

// SiteRepository deals with site lookups.
type SiteRepository interface {
	GetByID(ctx context.Context, siteID string) (*domain.Site, error)
}
