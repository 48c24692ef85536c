package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// ErrInvalidRole indicates a membership role outside the known ordering.
var ErrInvalidRole = errors.New("invalid membership role")

// ProgramService manages program memberships and counter repair.
type ProgramService struct {
	programs     port.ProgramRepository
	memberships  port.MembershipRepository
	observations port.ObservationRepository
	users        port.UserRepository
	access       *AccessService
	history      *HistoryService
	tx           port.TxManager
	logger       *zap.Logger
	now          func() time.Time
}

// NewProgramService constructs a ProgramService.
func NewProgramService(
	programs port.ProgramRepository,
	memberships port.MembershipRepository,
	observations port.ObservationRepository,
	users port.UserRepository,
	access *AccessService,
	history *HistoryService,
	tx port.TxManager,
	logger *zap.Logger,
) *ProgramService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProgramService{
		programs:     programs,
		memberships:  memberships,
		observations: observations,
		users:        users,
		access:       access,
		history:      history,
		tx:           tx,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *ProgramService) WithClock(now func() time.Time) *ProgramService {
	if now != nil {
		s.now = now
	}
	return s
}

// UpsertMembership grants or changes the target user's role on the program.
// Requires member-management rights.
func (s *ProgramService) UpsertMembership(ctx context.Context, principal domain.Principal, programID, targetUserID string, role domain.Role) (*domain.ProgramMembership, error) {
	programID = strings.TrimSpace(programID)
	targetUserID = strings.TrimSpace(targetUserID)
	if programID == "" || targetUserID == "" {
		return nil, fmt.Errorf("%w: program id and user id are required", ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}

	if err := s.access.Authorize(principal, program.Resource(), domain.ActionManageMembers); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get target user: %w", err)
	}

	prior, err := s.memberships.Get(ctx, programID, targetUserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get membership: %w", err)
	}

	membership := domain.ProgramMembership{
		ProgramID:  programID,
		UserID:     targetUserID,
		Role:       role,
		AssignedAt: s.now().UTC(),
	}
	if prior != nil {
		membership.AssignedAt = prior.AssignedAt
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.memberships.Upsert(ctx, membership); err != nil {
			return fmt.Errorf("upsert membership: %w", err)
		}

		mutation := Mutation{
			Kind:       domain.HistoryCreated,
			ObjectType: domain.ObjectMembership,
			ObjectID:   membershipObjectID(programID, targetUserID),
			ProgramID:  &programID,
			After:      membership.Snapshot(),
		}
		if prior != nil {
			mutation.Kind = domain.HistoryUpdated
			mutation.Before = prior.Snapshot()
		}
		return s.history.Record(ctx, mutation)
	})
	if err != nil {
		return nil, err
	}

	s.access.InvalidatePrincipal(ctx, targetUserID)
	return &membership, nil
}

// RemoveMembership revokes the target user's role on the program.
func (s *ProgramService) RemoveMembership(ctx context.Context, principal domain.Principal, programID, targetUserID string) error {
	programID = strings.TrimSpace(programID)
	targetUserID = strings.TrimSpace(targetUserID)
	if programID == "" || targetUserID == "" {
		return fmt.Errorf("%w: program id and user id are required", ErrValidation)
	}

	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("get program: %w", err)
	}

	if err := s.access.Authorize(principal, program.Resource(), domain.ActionManageMembers); err != nil {
		return err
	}

	prior, err := s.memberships.Get(ctx, programID, targetUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("get membership: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.memberships.Delete(ctx, programID, targetUserID); err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return s.history.Record(ctx, Mutation{
			Kind:       domain.HistoryDeleted,
			ObjectType: domain.ObjectMembership,
			ObjectID:   membershipObjectID(programID, targetUserID),
			ProgramID:  &programID,
			Before:     prior.Snapshot(),
		})
	})
	if err != nil {
		return err
	}

	s.access.InvalidatePrincipal(ctx, targetUserID)
	return nil
}

// RecountProgram recomputes the cached roll-up counters from live child rows.
func (s *ProgramService) RecountProgram(ctx context.Context, principal domain.Principal, programID string) (*domain.Program, error) {
	programID = strings.TrimSpace(programID)
	if programID == "" {
		return nil, fmt.Errorf("%w: program id is required", ErrValidation)
	}

	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}

	if err := s.access.Authorize(principal, program.Resource(), domain.ActionWrite); err != nil {
		return nil, err
	}

	var repaired *domain.Program
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		repaired, err = s.programs.Recount(ctx, programID)
		if err != nil {
			return fmt.Errorf("recount program: %w", err)
		}

		if repaired.SiteCount == program.SiteCount && repaired.SubmissionCount == program.SubmissionCount {
			return nil
		}
		return s.history.Record(ctx, Mutation{
			Kind:       domain.HistoryUpdated,
			ObjectType: domain.ObjectProgram,
			ObjectID:   programID,
			ProgramID:  &programID,
			Before: map[string]any{
				"site_count":       program.SiteCount,
				"submission_count": program.SubmissionCount,
			},
			After: map[string]any{
				"site_count":       repaired.SiteCount,
				"submission_count": repaired.SubmissionCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return repaired, nil
}

// RepairObservationAncestry realigns denormalized observation ancestry with
// the owning submissions across all programs. Super-admin only.
func (s *ProgramService) RepairObservationAncestry(ctx context.Context, principal domain.Principal) (int, error) {
	if !principal.SuperAdmin {
		return 0, ErrAccessDenied
	}

	fixed, err := s.observations.RepairAncestry(ctx)
	if err != nil {
		return 0, fmt.Errorf("repair observation ancestry: %w", err)
	}

	if fixed > 0 {
		s.logger.Info("observation ancestry repaired", zap.Int("rows", fixed))
	}
	return fixed, nil
}

func membershipObjectID(programID, userID string) string {
	return fmt.Sprintf("%s:%s", programID, userID)
}
