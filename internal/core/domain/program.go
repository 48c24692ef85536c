package domain

import "time"

// Program is the top-level unit of work a company runs. The site and
// submission counters are caches of live child-row counts and must always be
// recomputable from scratch.
type Program struct {
	ID              string
	Name            string
	CompanyID       *string
	SiteCount       int
	SubmissionCount int
	CreatedAt       time.Time
}

// Resource returns the authorization target for program-scoped decisions.
func (p Program) Resource() Resource {
	return Resource{ProgramID: p.ID, CompanyID: p.CompanyID}
}

// ProgramMembership grants a user a role on a program.
type ProgramMembership struct {
	ProgramID  string
	UserID     string
	Role       Role
	AssignedAt time.Time
}

// Snapshot returns the audit image of the membership record.
func (m ProgramMembership) Snapshot() map[string]any {
	return map[string]any{
		"program_id": m.ProgramID,
		"user_id":    m.UserID,
		"role":       string(m.Role),
	}
}

// Site is a physical location belonging to exactly one program.
type Site struct {
	ID        string
	ProgramID string
	Name      string
	CreatedAt time.Time
}
