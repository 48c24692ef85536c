package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles the postgres-backed repositories.
type Repositories struct {
	Users        *UserRepository
	Programs     *ProgramRepository
	Memberships  *MembershipRepository
	Sites        *SiteRepository
	Submissions  *SubmissionRepository
	Observations *ObservationRepository
	Sessions     *SessionRepository
	History      *HistoryRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:        NewUserRepository(pool),
		Programs:     NewProgramRepository(pool),
		Memberships:  NewMembershipRepository(pool),
		Sites:        NewSiteRepository(pool),
		Submissions:  NewSubmissionRepository(pool),
		Observations: NewObservationRepository(pool),
		Sessions:     NewSessionRepository(pool),
		History:      NewHistoryRepository(pool),
	}
}
