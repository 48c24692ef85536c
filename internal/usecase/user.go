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

// UserService manages user status changes.
type UserService struct {
	users       port.UserRepository
	memberships port.MembershipRepository
	access      *AccessService
	history     *HistoryService
	tx          port.TxManager
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(
	users port.UserRepository,
	memberships port.MembershipRepository,
	access *AccessService,
	history *HistoryService,
	tx port.TxManager,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UserService{
		users:       users,
		memberships: memberships,
		access:      access,
		history:     history,
		tx:          tx,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *UserService) WithClock(now func() time.Time) *UserService {
	if now != nil {
		s.now = now
	}
	return s
}

// Deactivate flips the user inactive and forces every program membership to
// the least-privilege role, all in one transaction. Requires company-scoped
// administration over the subject's company. Idempotent for an already
// inactive user.
func (s *UserService) Deactivate(ctx context.Context, principal domain.Principal, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	subject, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	res := domain.Resource{CompanyID: subject.CompanyID}
	if err := s.access.Authorize(principal, res, domain.ActionManageCompany); err != nil {
		return nil, err
	}

	if !subject.Active {
		return subject, nil
	}

	before := subject.Snapshot()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetActive(ctx, userID, false); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}

		demoted, err := s.memberships.DemoteAllForUser(ctx, userID, domain.RoleReadOnly)
		if err != nil {
			return fmt.Errorf("demote memberships: %w", err)
		}

		subject.Active = false
		if err := s.history.Record(ctx, Mutation{
			Kind:       domain.HistoryUpdated,
			ObjectType: domain.ObjectUser,
			ObjectID:   userID,
			Before:     before,
			After:      subject.Snapshot(),
		}); err != nil {
			return err
		}

		for _, prior := range demoted {
			if prior.Role == domain.RoleReadOnly {
				continue
			}
			after := prior
			after.Role = domain.RoleReadOnly
			if err := s.history.Record(ctx, Mutation{
				Kind:       domain.HistoryUpdated,
				ObjectType: domain.ObjectMembership,
				ObjectID:   membershipObjectID(prior.ProgramID, userID),
				ProgramID:  &prior.ProgramID,
				Before:     prior.Snapshot(),
				After:      after.Snapshot(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.access.InvalidatePrincipal(ctx, userID)
	s.logger.Info("user deactivated", zap.String("user_id", userID), zap.String("actor_id", principal.UserID))

	return subject, nil
}
