package domain

import "time"

// VisitState is the lifecycle state of a field-visit session.
type VisitState string

const (
	VisitOpened            VisitState = "opened"
	VisitWorking           VisitState = "working"
	VisitShared            VisitState = "shared"
	VisitEscalated         VisitState = "escalated"
	VisitCompleted         VisitState = "completed"
	VisitCancelled         VisitState = "cancelled"
	VisitExpiredComplete   VisitState = "expired_complete"
	VisitExpiredIncomplete VisitState = "expired_incomplete"
)

// Terminal reports whether the state accepts no further transitions.
func (s VisitState) Terminal() bool {
	switch s {
	case VisitCompleted, VisitCancelled, VisitExpiredComplete, VisitExpiredIncomplete:
		return true
	}
	return false
}

// ShareIntent distinguishes a plain collaborative hand-off from an explicit
// escalation to a privileged reviewer.
type ShareIntent string

const (
	IntentShare    ShareIntent = "share"
	IntentEscalate ShareIntent = "escalate"
)

// Valid reports whether the intent is one of the known share intents.
func (i ShareIntent) Valid() bool {
	return i == IntentShare || i == IntentEscalate
}

// VisitSession is the mutable lifecycle wrapper around one submission's
// data-entry process. Exactly one session exists per submission; the storage
// layer enforces the uniqueness.
type VisitSession struct {
	ID              string
	SubmissionID    string
	SiteID          string
	ProgramID       string
	State           VisitState
	OpenedBy        string
	SharedWith      []string
	PercentComplete float64
	StartedAt       time.Time
	LastActivityAt  time.Time
	CompletedAt     *time.Time
	CompletedBy     *string
}

// CanActOn reports whether the user is the opener or in the shared set, the
// authorization baseline for every caller-triggered transition.
func (v VisitSession) CanActOn(userID string) bool {
	if v.OpenedBy == userID {
		return true
	}
	for _, id := range v.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// AddShared unions the target users into the shared set, skipping the opener
// and existing members. Returns the ids actually added.
func (v *VisitSession) AddShared(userIDs []string) []string {
	existing := make(map[string]struct{}, len(v.SharedWith)+1)
	existing[v.OpenedBy] = struct{}{}
	for _, id := range v.SharedWith {
		existing[id] = struct{}{}
	}

	added := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := existing[id]; ok {
			continue
		}
		existing[id] = struct{}{}
		v.SharedWith = append(v.SharedWith, id)
		added = append(added, id)
	}
	return added
}

// NextShareState resolves the state a share transition lands in. Escalation
// is monotonic: once escalated, the session stays escalated regardless of who
// is shared later.
func (v VisitSession) NextShareState(escalate bool) VisitState {
	if v.State == VisitEscalated || escalate {
		return VisitEscalated
	}
	switch v.State {
	case VisitOpened, VisitWorking, VisitShared:
		return VisitShared
	}
	return v.State
}

// ExpiredState resolves the terminal state the sweeper forces a stale session
// into, based on its completion ratio.
func (v VisitSession) ExpiredState() VisitState {
	if v.PercentComplete >= 100 {
		return VisitExpiredComplete
	}
	return VisitExpiredIncomplete
}

// Snapshot returns the audit image of the session record.
func (v VisitSession) Snapshot() map[string]any {
	snap := map[string]any{
		"id":               v.ID,
		"submission_id":    v.SubmissionID,
		"site_id":          v.SiteID,
		"program_id":       v.ProgramID,
		"state":            string(v.State),
		"opened_by":        v.OpenedBy,
		"shared_with":      append([]string(nil), v.SharedWith...),
		"percent_complete": v.PercentComplete,
	}
	if v.CompletedAt != nil {
		snap["completed_at"] = v.CompletedAt.UTC()
	}
	if v.CompletedBy != nil {
		snap["completed_by"] = *v.CompletedBy
	}
	return snap
}
