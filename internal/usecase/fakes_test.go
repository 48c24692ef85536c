package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

type fakeUserRepository struct {
	users       map[string]*domain.User
	activeCalls []string
}

func newFakeUserRepository(users ...domain.User) *fakeUserRepository {
	repo := &fakeUserRepository{users: make(map[string]*domain.User)}
	for i := range users {
		user := users[i]
		repo.users[user.ID] = &user
	}
	return repo
}

func (f *fakeUserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	user, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.Active = active
	f.activeCalls = append(f.activeCalls, userID)
	return nil
}

type fakeProgramRepository struct {
	programs   map[string]*domain.Program
	countCalls []int
}

func newFakeProgramRepository(programs ...domain.Program) *fakeProgramRepository {
	repo := &fakeProgramRepository{programs: make(map[string]*domain.Program)}
	for i := range programs {
		program := programs[i]
		repo.programs[program.ID] = &program
	}
	return repo
}

func (f *fakeProgramRepository) GetByID(ctx context.Context, programID string) (*domain.Program, error) {
	program, ok := f.programs[programID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *program
	return &copied, nil
}

func (f *fakeProgramRepository) AddSubmissionCount(ctx context.Context, programID string, delta int) error {
	program, ok := f.programs[programID]
	if !ok {
		return repository.ErrNotFound
	}
	program.SubmissionCount += delta
	f.countCalls = append(f.countCalls, delta)
	return nil
}

func (f *fakeProgramRepository) Recount(ctx context.Context, programID string) (*domain.Program, error) {
	return f.GetByID(ctx, programID)
}

type membershipKey struct{ programID, userID string }

type fakeMembershipRepository struct {
	memberships map[membershipKey]*domain.ProgramMembership
}

func newFakeMembershipRepository(memberships ...domain.ProgramMembership) *fakeMembershipRepository {
	repo := &fakeMembershipRepository{memberships: make(map[membershipKey]*domain.ProgramMembership)}
	for i := range memberships {
		m := memberships[i]
		repo.memberships[membershipKey{m.ProgramID, m.UserID}] = &m
	}
	return repo
}

func (f *fakeMembershipRepository) Get(ctx context.Context, programID, userID string) (*domain.ProgramMembership, error) {
	m, ok := f.memberships[membershipKey{programID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMembershipRepository) ListByUser(ctx context.Context, userID string) ([]domain.ProgramMembership, error) {
	var result []domain.ProgramMembership
	for _, m := range f.memberships {
		if m.UserID == userID {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProgramID < result[j].ProgramID })
	return result, nil
}

func (f *fakeMembershipRepository) Upsert(ctx context.Context, membership domain.ProgramMembership) error {
	copied := membership
	f.memberships[membershipKey{membership.ProgramID, membership.UserID}] = &copied
	return nil
}

func (f *fakeMembershipRepository) Delete(ctx context.Context, programID, userID string) error {
	key := membershipKey{programID, userID}
	if _, ok := f.memberships[key]; !ok {
		return repository.ErrNotFound
	}
	delete(f.memberships, key)
	return nil
}

func (f *fakeMembershipRepository) DemoteAllForUser(ctx context.Context, userID string, to domain.Role) ([]domain.ProgramMembership, error) {
	prior, _ := f.ListByUser(ctx, userID)
	for _, m := range f.memberships {
		if m.UserID == userID {
			m.Role = to
		}
	}
	return prior, nil
}

type fakeSiteRepository struct {
	sites map[string]*domain.Site
}

func newFakeSiteRepository(sites ...domain.Site) *fakeSiteRepository {
	repo := &fakeSiteRepository{sites: make(map[string]*domain.Site)}
	for i := range sites {
		site := sites[i]
		repo.sites[site.ID] = &site
	}
	return repo
}

func (f *fakeSiteRepository) GetByID(ctx context.Context, siteID string) (*domain.Site, error) {
	site, ok := f.sites[siteID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *site
	return &copied, nil
}

type fakeSubmissionRepository struct {
	submissions map[string]*domain.Submission
	nextSeq     int64
}

func newFakeSubmissionRepository() *fakeSubmissionRepository {
	return &fakeSubmissionRepository{submissions: make(map[string]*domain.Submission)}
}

func (f *fakeSubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	f.nextSeq++
	submission.Sequence = f.nextSeq
	copied := *submission
	f.submissions[submission.ID] = &copied
	return nil
}

func (f *fakeSubmissionRepository) GetByID(ctx context.Context, submissionID string) (*domain.Submission, error) {
	submission, ok := f.submissions[submissionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *submission
	return &copied, nil
}

type fakeObservationRepository struct {
	observations map[string]*domain.Observation
}

func newFakeObservationRepository(observations ...domain.Observation) *fakeObservationRepository {
	repo := &fakeObservationRepository{observations: make(map[string]*domain.Observation)}
	for i := range observations {
		obs := observations[i]
		repo.observations[obs.ID] = &obs
	}
	return repo
}

func (f *fakeObservationRepository) CreateBatch(ctx context.Context, observations []domain.Observation) error {
	for i := range observations {
		obs := observations[i]
		f.observations[obs.ID] = &obs
	}
	return nil
}

func (f *fakeObservationRepository) GetByID(ctx context.Context, observationID string) (*domain.Observation, error) {
	obs, ok := f.observations[observationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *obs
	return &copied, nil
}

func (f *fakeObservationRepository) ListBySubmission(ctx context.Context, submissionID string) ([]domain.Observation, error) {
	var result []domain.Observation
	for _, obs := range f.observations {
		if obs.SubmissionID == submissionID {
			result = append(result, *obs)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeObservationRepository) Counts(ctx context.Context, submissionID string) (int, int, error) {
	var expected, completed int
	for _, obs := range f.observations {
		if obs.SubmissionID != submissionID {
			continue
		}
		expected++
		if obs.CompletedAt != nil {
			completed++
		}
	}
	return expected, completed, nil
}

func (f *fakeObservationRepository) ListPending(ctx context.Context, submissionID string) ([]domain.Observation, error) {
	var result []domain.Observation
	for _, obs := range f.observations {
		if obs.SubmissionID == submissionID && obs.CompletedAt == nil {
			result = append(result, *obs)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeObservationRepository) DeleteByID(ctx context.Context, observationID string) error {
	if _, ok := f.observations[observationID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.observations, observationID)
	return nil
}

func (f *fakeObservationRepository) SetMedia(ctx context.Context, observationID, mediaRef string, completedAt time.Time) error {
	obs, ok := f.observations[observationID]
	if !ok {
		return repository.ErrNotFound
	}
	obs.MediaRef = &mediaRef
	obs.CompletedAt = &completedAt
	return nil
}

func (f *fakeObservationRepository) RepairAncestry(ctx context.Context) (int, error) {
	return 0, nil
}

type fakeSessionRepository struct {
	sessions     map[string]*domain.VisitSession
	bySubmission map[string]string
	createErr    error
}

func newFakeSessionRepository(sessions ...domain.VisitSession) *fakeSessionRepository {
	repo := &fakeSessionRepository{
		sessions:     make(map[string]*domain.VisitSession),
		bySubmission: make(map[string]string),
	}
	for i := range sessions {
		session := sessions[i]
		repo.sessions[session.ID] = &session
		repo.bySubmission[session.SubmissionID] = session.ID
	}
	return repo
}

func (f *fakeSessionRepository) Create(ctx context.Context, session domain.VisitSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.bySubmission[session.SubmissionID]; exists {
		return repository.ErrConflict
	}
	copied := session
	f.sessions[session.ID] = &copied
	f.bySubmission[session.SubmissionID] = session.ID
	return nil
}

func (f *fakeSessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.VisitSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	copied.SharedWith = append([]string(nil), session.SharedWith...)
	return &copied, nil
}

func (f *fakeSessionRepository) GetBySubmission(ctx context.Context, submissionID string) (*domain.VisitSession, error) {
	sessionID, ok := f.bySubmission[submissionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.GetByID(ctx, sessionID)
}

func (f *fakeSessionRepository) Update(ctx context.Context, session domain.VisitSession) error {
	stored, ok := f.sessions[session.ID]
	if !ok || stored.State.Terminal() {
		return repository.ErrNotFound
	}
	copied := session
	copied.SharedWith = append([]string(nil), session.SharedWith...)
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.VisitSession, error) {
	var result []domain.VisitSession
	for _, session := range f.sessions {
		if session.State.Terminal() {
			continue
		}
		if session.CanActOn(userID) {
			result = append(result, *session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})
	return result, nil
}

func (f *fakeSessionRepository) ListStale(ctx context.Context, cutoff time.Time) ([]domain.VisitSession, error) {
	var result []domain.VisitSession
	for _, session := range f.sessions {
		if session.State.Terminal() || !session.StartedAt.Before(cutoff) {
			continue
		}
		result = append(result, *session)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type fakeHistoryRepository struct {
	events []domain.HistoryEvent
}

func (f *fakeHistoryRepository) Append(ctx context.Context, event domain.HistoryEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeHistoryRepository) QueryByProgram(ctx context.Context, programID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	var result []domain.HistoryEvent
	for _, event := range f.events {
		if event.ProgramID == nil || *event.ProgramID != programID {
			continue
		}
		if filter.ObjectType != nil && event.ObjectType != *filter.ObjectType {
			continue
		}
		if filter.Kind != nil && event.Kind != *filter.Kind {
			continue
		}
		result = append(result, event)
	}
	return result, nil
}

func (f *fakeHistoryRepository) QueryByUser(ctx context.Context, userID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error) {
	var result []domain.HistoryEvent
	for _, event := range f.events {
		if event.ActorUserID == userID || (event.ObjectType == domain.ObjectUser && event.ObjectID == userID) {
			result = append(result, event)
		}
	}
	return result, nil
}

func (f *fakeHistoryRepository) byType(objectType string) []domain.HistoryEvent {
	var result []domain.HistoryEvent
	for _, event := range f.events {
		if event.ObjectType == objectType {
			result = append(result, event)
		}
	}
	return result
}

type passthroughTxManager struct {
	calls int
}

func (f *passthroughTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeEventPublisher struct {
	sessionEvents []domain.SessionStateChangedEvent
	historyEvents []domain.HistoryAppendedEvent
}

func (f *fakeEventPublisher) PublishSessionStateChanged(ctx context.Context, event domain.SessionStateChangedEvent) error {
	f.sessionEvents = append(f.sessionEvents, event)
	return nil
}

func (f *fakeEventPublisher) PublishHistoryAppended(ctx context.Context, event domain.HistoryAppendedEvent) error {
	f.historyEvents = append(f.historyEvents, event)
	return nil
}

type fakePrincipalCache struct {
	entries     map[string]domain.Principal
	invalidated []string
}

func newFakePrincipalCache() *fakePrincipalCache {
	return &fakePrincipalCache{entries: make(map[string]domain.Principal)}
}

func (f *fakePrincipalCache) Get(ctx context.Context, userID string) (*domain.Principal, error) {
	principal, ok := f.entries[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &principal, nil
}

func (f *fakePrincipalCache) Set(ctx context.Context, principal domain.Principal, ttl time.Duration) error {
	f.entries[principal.UserID] = principal
	return nil
}

func (f *fakePrincipalCache) Invalidate(ctx context.Context, userID string) error {
	delete(f.entries, userID)
	f.invalidated = append(f.invalidated, userID)
	return nil
}
