package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

var (
	// ErrInvalidTransition indicates an illegal session transition from the
	// current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionExists indicates a session already exists for the submission.
	ErrSessionExists = fmt.Errorf("%w: session already exists for submission", ErrInvalidTransition)
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("invalid input")
)

// InvalidTransitionError carries the session's current state so clients can
// reconcile after a rejected transition.
type InvalidTransitionError struct {
	Current domain.VisitState
	Op      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s session in state %q", e.Op, e.Current)
}

// Is makes the error match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CreateSessionInput captures the payload for opening a visit session.
// Template entries pre-populate pending observations; malformed entries
// degrade to "no templates" rather than failing the request.
type CreateSessionInput struct {
	SiteID            string
	Fields            map[string]any
	PetriTemplates    []map[string]any
	GasifierTemplates []map[string]any
}

// CreateSessionResult is the synchronous answer to a session creation.
type CreateSessionResult struct {
	Session      domain.VisitSession
	SubmissionID string
	Sequence     int64
}

// CancelSessionResult reports the terminal state and how many pending
// observations of each kind were discarded.
type CancelSessionResult struct {
	Session         domain.VisitSession
	DeletedPetri    int
	DeletedGasifier int
}

// SweepResult summarizes one expiration pass.
type SweepResult struct {
	Scanned           int
	ExpiredComplete   int
	ExpiredIncomplete int
}

// VisitService drives the field-visit session lifecycle. Every transition is
// authorized first and committed atomically with its audit entry.
type VisitService struct {
	sessions     port.SessionRepository
	submissions  port.SubmissionRepository
	observations port.ObservationRepository
	sites        port.SiteRepository
	programs     port.ProgramRepository
	memberships  port.MembershipRepository
	users        port.UserRepository
	access       *AccessService
	history      *HistoryService
	tx           port.TxManager
	publisher    port.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewVisitService constructs a VisitService.
func NewVisitService(
	sessions port.SessionRepository,
	submissions port.SubmissionRepository,
	observations port.ObservationRepository,
	sites port.SiteRepository,
	programs port.ProgramRepository,
	memberships port.MembershipRepository,
	users port.UserRepository,
	access *AccessService,
	history *HistoryService,
	tx port.TxManager,
	publisher port.EventPublisher,
	logger *zap.Logger,
) *VisitService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VisitService{
		sessions:     sessions,
		submissions:  submissions,
		observations: observations,
		sites:        sites,
		programs:     programs,
		memberships:  memberships,
		users:        users,
		access:       access,
		history:      history,
		tx:           tx,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *VisitService) WithClock(now func() time.Time) *VisitService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateSession opens a submission and its session in one transaction. With
// any template-backed observations the session starts Working, otherwise
// Opened. A concurrent creation for the same submission loses on the storage
// uniqueness constraint and surfaces ErrSessionExists.
func (s *VisitService) CreateSession(ctx context.Context, principal domain.Principal, input CreateSessionInput) (*CreateSessionResult, error) {
	siteID := strings.TrimSpace(input.SiteID)
	if siteID == "" {
		return nil, fmt.Errorf("%w: site id is required", ErrValidation)
	}

	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get site: %w", err)
	}

	program, err := s.programs.GetByID(ctx, site.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}

	if err := s.access.Authorize(principal, program.Resource(), domain.ActionWrite); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	submission := domain.Submission{
		ID:        uuid.NewString(),
		SiteID:    site.ID,
		ProgramID: program.ID,
		Fields:    input.Fields,
		CreatedBy: principal.UserID,
		CreatedAt: now,
	}

	observations := buildTemplateObservations(submission, input.PetriTemplates, domain.ObservationPetri, now)
	observations = append(observations, buildTemplateObservations(submission, input.GasifierTemplates, domain.ObservationGasifier, now)...)

	state := domain.VisitOpened
	if len(observations) > 0 {
		state = domain.VisitWorking
	}

	session := domain.VisitSession{
		ID:              uuid.NewString(),
		SubmissionID:    submission.ID,
		SiteID:          site.ID,
		ProgramID:       program.ID,
		State:           state,
		OpenedBy:        principal.UserID,
		PercentComplete: domain.PercentComplete(0, len(observations)),
		StartedAt:       now,
		LastActivityAt:  now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.submissions.Create(ctx, &submission); err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		if err := s.observations.CreateBatch(ctx, observations); err != nil {
			return fmt.Errorf("create observations: %w", err)
		}
		if err := s.programs.AddSubmissionCount(ctx, program.ID, 1); err != nil {
			return fmt.Errorf("bump submission count: %w", err)
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSessionExists
			}
			return fmt.Errorf("create session: %w", err)
		}

		if err := s.history.Record(ctx, Mutation{
			Kind:       domain.HistoryCreated,
			ObjectType: domain.ObjectSubmission,
			ObjectID:   submission.ID,
			ProgramID:  &program.ID,
			SiteID:     &site.ID,
			After:      submission.Snapshot(),
		}); err != nil {
			return err
		}
		for _, obs := range observations {
			if err := s.history.Record(ctx, Mutation{
				Kind:       domain.HistoryCreated,
				ObjectType: domain.ObjectObservation,
				ObjectID:   obs.ID,
				ProgramID:  &program.ID,
				SiteID:     &site.ID,
				After:      obs.Snapshot(),
			}); err != nil {
				return err
			}
		}
		return s.history.Record(ctx, Mutation{
			Kind:       domain.HistoryCreated,
			ObjectType: domain.ObjectSession,
			ObjectID:   session.ID,
			ProgramID:  &program.ID,
			SiteID:     &site.ID,
			After:      session.Snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishTransition(ctx, session, "", principal.UserID)

	return &CreateSessionResult{
		Session:      session,
		SubmissionID: submission.ID,
		Sequence:     submission.Sequence,
	}, nil
}

// TouchSession recomputes the completion percentage, stamps activity, and
// advances Opened to Working once any observation is completed.
func (s *VisitService) TouchSession(ctx context.Context, principal domain.Principal, sessionID string) (*domain.VisitSession, error) {
	session, err := s.loadActionable(ctx, principal, sessionID, "touch")
	if err != nil {
		return nil, err
	}

	expected, completed, err := s.observations.Counts(ctx, session.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}

	before := session.Snapshot()
	previous := session.State

	session.PercentComplete = domain.PercentComplete(completed, expected)
	session.LastActivityAt = s.now().UTC()
	if session.State == domain.VisitOpened && completed > 0 {
		session.State = domain.VisitWorking
	}

	if err := s.applyTransition(ctx, session, before, "touch"); err != nil {
		return nil, err
	}

	if session.State != previous {
		s.publishTransition(ctx, *session, previous, principal.UserID)
	}
	return session, nil
}

// ShareSession unions the target users into the shared set. The session lands
// in Escalated when the intent says so or any target is a program admin or a
// company admin of the owning company; escalation is monotonic.
func (s *VisitService) ShareSession(ctx context.Context, principal domain.Principal, sessionID string, targetUserIDs []string, intent domain.ShareIntent) (*domain.VisitSession, error) {
	if !intent.Valid() {
		return nil, fmt.Errorf("%w: unknown share intent %q", ErrValidation, intent)
	}
	if len(targetUserIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one target user is required", ErrValidation)
	}

	session, err := s.loadActionable(ctx, principal, sessionID, "share")
	if err != nil {
		return nil, err
	}

	program, err := s.programs.GetByID(ctx, session.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}

	escalate := intent == domain.IntentEscalate
	for _, targetID := range targetUserIDs {
		privileged, err := s.targetIsPrivileged(ctx, targetID, program)
		if err != nil {
			return nil, err
		}
		if privileged {
			escalate = true
		}
	}

	before := session.Snapshot()
	previous := session.State

	session.AddShared(targetUserIDs)
	session.State = session.NextShareState(escalate)
	session.LastActivityAt = s.now().UTC()

	if err := s.applyTransition(ctx, session, before, "share"); err != nil {
		return nil, err
	}

	s.publishTransition(ctx, *session, previous, principal.UserID)
	return session, nil
}

// CompleteSession finalizes the session, stamping the completing actor and
// forcing the completion percentage to 100.
func (s *VisitService) CompleteSession(ctx context.Context, principal domain.Principal, sessionID string) (*domain.VisitSession, error) {
	session, err := s.loadActionable(ctx, principal, sessionID, "complete")
	if err != nil {
		return nil, err
	}

	before := session.Snapshot()
	previous := session.State
	now := s.now().UTC()

	session.State = domain.VisitCompleted
	session.PercentComplete = 100
	session.LastActivityAt = now
	session.CompletedAt = &now
	completedBy := principal.UserID
	session.CompletedBy = &completedBy

	if err := s.applyTransition(ctx, session, before, "complete"); err != nil {
		return nil, err
	}

	s.publishTransition(ctx, *session, previous, principal.UserID)
	return session, nil
}

// CancelSession discards the submission's pending observations and terminates
// the session, reporting per-kind deletion counts. Completed observations are
// retained.
func (s *VisitService) CancelSession(ctx context.Context, principal domain.Principal, sessionID string) (*CancelSessionResult, error) {
	session, err := s.loadActionable(ctx, principal, sessionID, "cancel")
	if err != nil {
		return nil, err
	}

	before := session.Snapshot()
	previous := session.State

	session.State = domain.VisitCancelled
	session.LastActivityAt = s.now().UTC()

	result := &CancelSessionResult{}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		pending, err := s.observations.ListPending(ctx, session.SubmissionID)
		if err != nil {
			return fmt.Errorf("list pending observations: %w", err)
		}

		for _, obs := range pending {
			if err := s.observations.DeleteByID(ctx, obs.ID); err != nil {
				return fmt.Errorf("delete observation: %w", err)
			}
			switch obs.Kind {
			case domain.ObservationPetri:
				result.DeletedPetri++
			case domain.ObservationGasifier:
				result.DeletedGasifier++
			}
			if err := s.history.Record(ctx, Mutation{
				Kind:       domain.HistoryDeleted,
				ObjectType: domain.ObjectObservation,
				ObjectID:   obs.ID,
				ProgramID:  &session.ProgramID,
				SiteID:     &session.SiteID,
				Before:     obs.Snapshot(),
			}); err != nil {
				return err
			}
		}

		return s.updateWithHistory(ctx, session, before, "cancel")
	})
	if err != nil {
		return nil, err
	}

	s.publishTransition(ctx, *session, previous, principal.UserID)

	result.Session = *session
	return result, nil
}

// ConfirmObservationMedia stores the captured media reference, flips the
// observation from pending to completed, and touches the owning session.
func (s *VisitService) ConfirmObservationMedia(ctx context.Context, principal domain.Principal, observationID, mediaRef string) (*domain.VisitSession, error) {
	mediaRef = strings.TrimSpace(mediaRef)
	if mediaRef == "" {
		return nil, fmt.Errorf("%w: media reference is required", ErrValidation)
	}

	obs, err := s.observations.GetByID(ctx, observationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get observation: %w", err)
	}

	session, err := s.sessions.GetBySubmission(ctx, obs.SubmissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.State.Terminal() {
		return nil, &InvalidTransitionError{Current: session.State, Op: "confirm media for"}
	}
	if !s.canAct(principal, *session) {
		return nil, ErrAccessDenied
	}

	now := s.now().UTC()
	obsBefore := obs.Snapshot()
	sessionBefore := session.Snapshot()
	previous := session.State

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.observations.SetMedia(ctx, obs.ID, mediaRef, now); err != nil {
			return fmt.Errorf("set observation media: %w", err)
		}

		expected, completed, err := s.observations.Counts(ctx, session.SubmissionID)
		if err != nil {
			return fmt.Errorf("count observations: %w", err)
		}

		session.PercentComplete = domain.PercentComplete(completed, expected)
		session.LastActivityAt = now
		if session.State == domain.VisitOpened && completed > 0 {
			session.State = domain.VisitWorking
		}

		obs.MediaRef = &mediaRef
		obs.CompletedAt = &now
		if err := s.history.Record(ctx, Mutation{
			Kind:       domain.HistoryUpdated,
			ObjectType: domain.ObjectObservation,
			ObjectID:   obs.ID,
			ProgramID:  &session.ProgramID,
			SiteID:     &session.SiteID,
			Before:     obsBefore,
			After:      obs.Snapshot(),
		}); err != nil {
			return err
		}

		return s.updateWithHistory(ctx, session, sessionBefore, "touch")
	})
	if err != nil {
		return nil, err
	}

	if session.State != previous {
		s.publishTransition(ctx, *session, previous, principal.UserID)
	}
	return session, nil
}

// ListActiveSessions returns the non-terminal sessions the principal opened
// or was shared into, most recently active first.
func (s *VisitService) ListActiveSessions(ctx context.Context, principal domain.Principal) ([]domain.VisitSession, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// Sweep forces every non-terminal session whose creation day has ended into
// its expiration state. Idempotent and safe against racing transitions: a
// session finalized mid-sweep is simply skipped. Expirations are background
// work with no actor, so they are deliberately absent from the audit ledger.
func (s *VisitService) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stale, err := s.sessions.ListStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}

	result := &SweepResult{Scanned: len(stale)}

	for _, session := range stale {
		previous := session.State
		session.State = session.ExpiredState()
		session.LastActivityAt = now

		if err := s.sessions.Update(ctx, session); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Raced with a caller-triggered transition; already terminal.
				continue
			}
			return result, fmt.Errorf("expire session %s: %w", session.ID, err)
		}

		switch session.State {
		case domain.VisitExpiredComplete:
			result.ExpiredComplete++
		default:
			result.ExpiredIncomplete++
		}

		s.publishTransition(ctx, session, previous, "")
	}

	return result, nil
}

// loadActionable fetches the session and applies the transition baseline:
// non-terminal state, and the caller is the opener or in the shared set.
func (s *VisitService) loadActionable(ctx context.Context, principal domain.Principal, sessionID, op string) (*domain.VisitSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.State.Terminal() {
		return nil, &InvalidTransitionError{Current: session.State, Op: op}
	}
	if !s.canAct(principal, *session) {
		return nil, ErrAccessDenied
	}
	return session, nil
}

func (s *VisitService) canAct(principal domain.Principal, session domain.VisitSession) bool {
	return principal.SuperAdmin || session.CanActOn(principal.UserID)
}

// applyTransition persists the session change and its audit entry in one
// transaction.
func (s *VisitService) applyTransition(ctx context.Context, session *domain.VisitSession, before map[string]any, op string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.updateWithHistory(ctx, session, before, op)
	})
}

func (s *VisitService) updateWithHistory(ctx context.Context, session *domain.VisitSession, before map[string]any, op string) error {
	if err := s.sessions.Update(ctx, *session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The non-terminal guard matched no row: a racing transition
			// finalized the session first.
			if current, lookupErr := s.sessions.GetByID(ctx, session.ID); lookupErr == nil {
				return &InvalidTransitionError{Current: current.State, Op: op}
			}
			return &InvalidTransitionError{Current: session.State, Op: op}
		}
		return fmt.Errorf("update session: %w", err)
	}

	return s.history.Record(ctx, Mutation{
		Kind:       domain.HistoryUpdated,
		ObjectType: domain.ObjectSession,
		ObjectID:   session.ID,
		ProgramID:  &session.ProgramID,
		SiteID:     &session.SiteID,
		Before:     before,
		After:      session.Snapshot(),
	})
}

// targetIsPrivileged reports whether sharing with the target forces
// escalation: a program admin, or a company admin of the owning company.
func (s *VisitService) targetIsPrivileged(ctx context.Context, targetID string, program *domain.Program) (bool, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("%w: unknown target user %s", ErrValidation, targetID)
		}
		return false, fmt.Errorf("get target user: %w", err)
	}

	if target.CompanyAdmin && program.CompanyID != nil && target.CompanyID != nil && *program.CompanyID == *target.CompanyID {
		return true, nil
	}

	membership, err := s.memberships.Get(ctx, program.ID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get target membership: %w", err)
	}
	return membership.Role == domain.RoleAdmin, nil
}

func (s *VisitService) publishTransition(ctx context.Context, session domain.VisitSession, previous domain.VisitState, actorID string) {
	if s.publisher == nil {
		return
	}

	event := domain.SessionStateChangedEvent{
		EventID:       uuid.NewString(),
		SessionID:     session.ID,
		SubmissionID:  session.SubmissionID,
		ProgramID:     session.ProgramID,
		PreviousState: previous,
		State:         session.State,
		ActorUserID:   actorID,
		At:            s.now().UTC(),
		Metadata: map[string]any{
			"percent_complete": session.PercentComplete,
			"shared_with":      append([]string(nil), session.SharedWith...),
		},
	}
	if err := s.publisher.PublishSessionStateChanged(ctx, event); err != nil {
		s.logger.Warn("publish session transition failed",
			zap.String("session_id", session.ID),
			zap.String("state", string(session.State)),
			zap.Error(err),
		)
	}
}

// buildTemplateObservations turns template payloads into pending
// observations. Nil entries are malformed templates and are skipped, never a
// request failure: pre-population is a convenience.
func buildTemplateObservations(submission domain.Submission, templates []map[string]any, kind domain.ObservationKind, now time.Time) []domain.Observation {
	observations := make([]domain.Observation, 0, len(templates))
	for _, template := range templates {
		if template == nil {
			continue
		}
		observations = append(observations, domain.Observation{
			ID:           uuid.NewString(),
			SubmissionID: submission.ID,
			SiteID:       submission.SiteID,
			ProgramID:    submission.ProgramID,
			Kind:         kind,
			TemplateData: template,
			CreatedAt:    now,
		})
	}
	return observations
}
