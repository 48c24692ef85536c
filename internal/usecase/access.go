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
	applogger "github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/logger"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

var (
	// ErrAccessDenied indicates the principal lacks the role or company
	// relation the operation requires.
	ErrAccessDenied = errors.New("access denied")
	// ErrPrincipalNotFound indicates the request subject does not resolve to a
	// known user.
	ErrPrincipalNotFound = errors.New("principal not found")
)

const defaultPrincipalTTL = 5 * time.Minute

// ProgramPermissions is the per-program capability summary returned to
// clients so they can gate UI affordances without probing each operation.
type ProgramPermissions struct {
	CanRead          bool
	CanWrite         bool
	CanManageMembers bool
}

// AccessService resolves principals and answers authorization questions. The
// decision itself is the pure domain.Decide; this service owns the loading and
// caching of its inputs.
type AccessService struct {
	users       port.UserRepository
	memberships port.MembershipRepository
	programs    port.ProgramRepository
	cache       port.PrincipalCache
	logger      *zap.Logger
	cacheTTL    time.Duration
}

// NewAccessService constructs an AccessService.
func NewAccessService(
	users port.UserRepository,
	memberships port.MembershipRepository,
	programs port.ProgramRepository,
	cache port.PrincipalCache,
	logger *zap.Logger,
) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AccessService{
		users:       users,
		memberships: memberships,
		programs:    programs,
		cache:       cache,
		logger:      logger,
		cacheTTL:    defaultPrincipalTTL,
	}
}

// WithCacheTTL overrides the principal snapshot TTL.
func (s *AccessService) WithCacheTTL(ttl time.Duration) *AccessService {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// ResolvePrincipal loads the user row and every membership into a principal
// snapshot, serving from cache when possible. Cache failures degrade to a
// database read, never to a denial.
func (s *AccessService) ResolvePrincipal(ctx context.Context, userID string) (*domain.Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("principal cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	roles := make(map[string]domain.Role, len(memberships))
	for _, m := range memberships {
		roles[m.ProgramID] = m.Role
	}

	principal := domain.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		CompanyID:    user.CompanyID,
		CompanyAdmin: user.CompanyAdmin,
		SuperAdmin:   user.SuperAdmin,
		Active:       user.Active,
		Memberships:  roles,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, principal, s.cacheTTL); err != nil {
			s.logger.Warn("principal cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Debug("principal resolved",
		zap.String("user_id", user.ID),
		zap.String("email", applogger.MaskEmail(user.Email)),
		zap.Int("memberships", len(roles)),
	)

	return &principal, nil
}

// InvalidatePrincipal drops the cached snapshot after any mutation that
// changes the user's authorization inputs.
func (s *AccessService) InvalidatePrincipal(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("principal cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Authorize returns ErrAccessDenied unless the principal may perform the
// action on the resource.
func (s *AccessService) Authorize(principal domain.Principal, res domain.Resource, action domain.Action) error {
	if !domain.Decide(principal, res, action) {
		return ErrAccessDenied
	}
	return nil
}

// ProgramPermissions resolves the program and summarizes what the principal
// may do with it.
func (s *AccessService) ProgramPermissions(ctx context.Context, principal domain.Principal, programID string) (*ProgramPermissions, error) {
	programID = strings.TrimSpace(programID)
	if programID == "" {
		return nil, fmt.Errorf("program id is required")
	}

	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}

	res := program.Resource()
	return &ProgramPermissions{
		CanRead:          domain.Decide(principal, res, domain.ActionRead),
		CanWrite:         domain.Decide(principal, res, domain.ActionWrite),
		CanManageMembers: domain.Decide(principal, res, domain.ActionManageMembers),
	}, nil
}
