package domain

import "time"

// Submission is one field visit at a site. Sequence is a globally unique,
// monotonically increasing number assigned once at creation time.
type Submission struct {
	ID        string
	SiteID    string
	ProgramID string
	Sequence  int64
	Fields    map[string]any
	CreatedBy string
	CreatedAt time.Time
}

// Snapshot returns the audit image of the submission record.
func (s Submission) Snapshot() map[string]any {
	return map[string]any{
		"id":         s.ID,
		"site_id":    s.SiteID,
		"program_id": s.ProgramID,
		"sequence":   s.Sequence,
		"created_by": s.CreatedBy,
	}
}

// ObservationKind distinguishes the two classified sample types a submission
// can carry.
type ObservationKind string

const (
	ObservationPetri    ObservationKind = "petri"
	ObservationGasifier ObservationKind = "gasifier"
)

// Valid reports whether the kind is one of the known sample types.
func (k ObservationKind) Valid() bool {
	return k == ObservationPetri || k == ObservationGasifier
}

// Observation is a classified sample attached to a submission. Site and
// program are denormalized from the submission for query efficiency and must
// always match its ancestry. A nil MediaRef means the observation was created
// from a template and is still pending its captured media.
type Observation struct {
	ID           string
	SubmissionID string
	SiteID       string
	ProgramID    string
	Kind         ObservationKind
	TemplateData map[string]any
	MediaRef     *string
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// Completed reports whether the observation has its media reference confirmed.
func (o Observation) Completed() bool {
	return o.CompletedAt != nil
}

// Snapshot returns the audit image of the observation record.
func (o Observation) Snapshot() map[string]any {
	snap := map[string]any{
		"id":            o.ID,
		"submission_id": o.SubmissionID,
		"site_id":       o.SiteID,
		"program_id":    o.ProgramID,
		"kind":          string(o.Kind),
		"completed":     o.Completed(),
	}
	if o.MediaRef != nil {
		snap["media_ref"] = *o.MediaRef
	}
	return snap
}

// PercentComplete computes the completion ratio of a submission's
// observations as a percentage. Zero expected observations yields zero.
func PercentComplete(completed, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return float64(completed) / float64(expected) * 100
}
