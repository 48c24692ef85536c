package domain

// Role is a program membership level, ordered by privilege.
type Role string

const (
	RoleReadOnly Role = "read_only"
	RoleRespond  Role = "respond"
	RoleEdit     Role = "edit"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleReadOnly: 0,
	RoleRespond:  1,
	RoleEdit:     2,
	RoleAdmin:    3,
}

// Valid reports whether the role is one of the known membership levels.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role grants at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// Action enumerates the operations the evaluator can be asked about.
type Action string

const (
	ActionRead          Action = "read"
	ActionWrite         Action = "write"
	ActionManageMembers Action = "manage_members"
	ActionManageCompany Action = "manage_company"
)

// Principal is the fully resolved identity a request acts as: the user row
// plus every program membership, loaded once per request and passed down.
type Principal struct {
	UserID       string
	Email        string
	CompanyID    *string
	CompanyAdmin bool
	SuperAdmin   bool
	Active       bool
	Memberships  map[string]Role
}

// RoleIn returns the principal's membership role on the given program.
func (p Principal) RoleIn(programID string) (Role, bool) {
	role, ok := p.Memberships[programID]
	return role, ok
}

// Resource describes the target of an authorization decision: the owning
// program and company, and the owning user for self-access checks.
type Resource struct {
	ProgramID   string
	CompanyID   *string
	OwnerUserID string
}

// Decide is the authorization evaluator: a pure, side-effect-free decision
// over an already resolved principal and resource. Rules are OR-combined;
// any single grant allows the action.
//
//   - Super-admins are always allowed.
//   - A deactivated principal retains only self-read.
//   - Direct membership: read for any role, write for edit/admin,
//     member management for admin only.
//   - Company match: read always; write, member management, and
//     company-scoped administration require the company-admin flag.
//   - Self-access: a user may read and update their own record.
func Decide(p Principal, res Resource, action Action) bool {
	if p.SuperAdmin {
		return true
	}

	if !p.Active {
		return action == ActionRead && res.OwnerUserID != "" && res.OwnerUserID == p.UserID
	}

	if res.OwnerUserID != "" && res.OwnerUserID == p.UserID {
		if action == ActionRead || action == ActionWrite {
			return true
		}
	}

	if res.ProgramID != "" {
		if role, ok := p.RoleIn(res.ProgramID); ok {
			switch action {
			case ActionRead:
				return true
			case ActionWrite:
				if role.AtLeast(RoleEdit) {
					return true
				}
			case ActionManageMembers:
				if role == RoleAdmin {
					return true
				}
			}
		}
	}

	if sameCompany(p.CompanyID, res.CompanyID) {
		if action == ActionRead {
			return true
		}
		return p.CompanyAdmin
	}

	return false
}

// CanViewHistory reports whether the principal may read the audit ledger of
// the given program. Restricted to program admins and company admins of the
// owning company.
func CanViewHistory(p Principal, res Resource) bool {
	if p.SuperAdmin {
		return true
	}
	if !p.Active {
		return false
	}
	if role, ok := p.RoleIn(res.ProgramID); ok && role == RoleAdmin {
		return true
	}
	return p.CompanyAdmin && sameCompany(p.CompanyID, res.CompanyID)
}

// CanViewUserHistory reports whether the principal may read the audit trail
// of the given user. Restricted to company admins of that user's company.
func CanViewUserHistory(p Principal, subject User) bool {
	if p.SuperAdmin {
		return true
	}
	if !p.Active {
		return false
	}
	return p.CompanyAdmin && sameCompany(p.CompanyID, subject.CompanyID)
}

func sameCompany(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
