package domain

import "time"

// Company is the tenant boundary. Programs and users belong to a company;
// company admins can administer everything the company owns.
type Company struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// User mirrors the persisted representation in the users table. Identity
// (authentication, credentials) lives with the external identity provider;
// this row only carries the attributes authorization decisions need.
type User struct {
	ID           string
	Email        string
	FullName     *string
	CompanyID    *string
	CompanyAdmin bool
	SuperAdmin   bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot returns the audit image of the user record.
func (u User) Snapshot() map[string]any {
	snap := map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"company_admin": u.CompanyAdmin,
		"super_admin":   u.SuperAdmin,
		"active":        u.Active,
	}
	if u.CompanyID != nil {
		snap["company_id"] = *u.CompanyID
	}
	if u.FullName != nil {
		snap["full_name"] = *u.FullName
	}
	return snap
}
