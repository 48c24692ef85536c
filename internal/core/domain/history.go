package domain

import "time"

// HistoryKind classifies the mutation a ledger entry records.
type HistoryKind string

const (
	HistoryCreated HistoryKind = "created"
	HistoryUpdated HistoryKind = "updated"
	HistoryDeleted HistoryKind = "deleted"
)

// Tracked object types as stored in history events.
const (
	ObjectProgram     = "program"
	ObjectSite        = "site"
	ObjectSubmission  = "submission"
	ObjectObservation = "observation"
	ObjectSession     = "visit_session"
	ObjectUser        = "user"
	ObjectMembership  = "program_membership"
)

// HistoryEvent is one immutable, append-only audit record of a mutation.
// Actor identity is snapshotted at write time; Before and After carry the
// full prior and new images as generic key-value snapshots (the per-type
// field lists are the Snapshot methods on the entity types).
type HistoryEvent struct {
	ID             string
	Kind           HistoryKind
	ObjectType     string
	ObjectID       string
	ProgramID      *string
	SiteID         *string
	ActorUserID    string
	ActorEmail     string
	ActorCompanyID *string
	ActorRole      string
	Before         map[string]any
	After          map[string]any
	RequestID      *string
	IPAddress      *string
	UserAgent      *string
	CreatedAt      time.Time
}

// HistoryFilter narrows ledger queries. Nil fields match everything; reads
// are newest-first with offset/limit pagination.
type HistoryFilter struct {
	SiteID      *string
	ObjectType  *string
	Kind        *HistoryKind
	ActorUserID *string
	Limit       int
	Offset      int
}
