package domain

import "time"

// SessionStateChangedEvent is published on every visit-session transition.
type SessionStateChangedEvent struct {
	EventID       string
	SessionID     string
	SubmissionID  string
	ProgramID     string
	PreviousState VisitState
	State         VisitState
	ActorUserID   string
	At            time.Time
	Metadata      map[string]any
}

// HistoryAppendedEvent is published after an audit ledger entry commits.
type HistoryAppendedEvent struct {
	EventID     string
	HistoryID   string
	Kind        HistoryKind
	ObjectType  string
	ObjectID    string
	ProgramID   *string
	ActorUserID string
	At          time.Time
}
