package domain

import "testing"

func strPtr(s string) *string { return &s }

func TestDecideSuperAdminAlwaysAllowed(t *testing.T) {
	principal := Principal{UserID: "user-1", SuperAdmin: true, Active: true}
	res := Resource{ProgramID: "program-1"}

	for _, action := range []Action{ActionRead, ActionWrite, ActionManageMembers, ActionManageCompany} {
		if !Decide(principal, res, action) {
			t.Fatalf("expected super admin allowed for %s", action)
		}
	}
}

func TestDecideMembershipRoles(t *testing.T) {
	res := Resource{ProgramID: "program-1"}

	cases := []struct {
		name      string
		role      Role
		action    Action
		wantAllow bool
	}{
		{"read_only can read", RoleReadOnly, ActionRead, true},
		{"read_only cannot write", RoleReadOnly, ActionWrite, false},
		{"respond can read", RoleRespond, ActionRead, true},
		{"respond cannot write", RoleRespond, ActionWrite, false},
		{"edit can write", RoleEdit, ActionWrite, true},
		{"edit cannot manage members", RoleEdit, ActionManageMembers, false},
		{"admin can manage members", RoleAdmin, ActionManageMembers, true},
		{"admin can write", RoleAdmin, ActionWrite, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			principal := Principal{
				UserID:      "user-1",
				Active:      true,
				Memberships: map[string]Role{"program-1": tc.role},
			}
			if got := Decide(principal, res, tc.action); got != tc.wantAllow {
				t.Fatalf("Decide(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.wantAllow)
			}
		})
	}
}

func TestDecideCompanyMatch(t *testing.T) {
	res := Resource{ProgramID: "program-1", CompanyID: strPtr("company-1")}

	member := Principal{UserID: "user-1", Active: true, CompanyID: strPtr("company-1")}
	if !Decide(member, res, ActionRead) {
		t.Fatal("expected company match to grant read")
	}
	if Decide(member, res, ActionWrite) {
		t.Fatal("expected plain company member denied write")
	}

	admin := member
	admin.CompanyAdmin = true
	if !Decide(admin, res, ActionWrite) {
		t.Fatal("expected company admin allowed write")
	}
	if !Decide(admin, res, ActionManageCompany) {
		t.Fatal("expected company admin allowed company management")
	}

	outsider := Principal{UserID: "user-2", Active: true, CompanyID: strPtr("company-2"), CompanyAdmin: true}
	if Decide(outsider, res, ActionRead) {
		t.Fatal("expected foreign company admin denied read")
	}
}

func TestDecideSelfAccess(t *testing.T) {
	res := Resource{OwnerUserID: "user-1"}

	principal := Principal{UserID: "user-1", Active: true}
	if !Decide(principal, res, ActionRead) || !Decide(principal, res, ActionWrite) {
		t.Fatal("expected self read and write allowed")
	}

	other := Principal{UserID: "user-2", Active: true}
	if Decide(other, res, ActionRead) {
		t.Fatal("expected foreign user denied read of user record")
	}
}

func TestDecideInactiveRetainsOnlySelfRead(t *testing.T) {
	principal := Principal{
		UserID:      "user-1",
		Active:      false,
		CompanyID:   strPtr("company-1"),
		Memberships: map[string]Role{"program-1": RoleAdmin},
	}

	if !Decide(principal, Resource{OwnerUserID: "user-1"}, ActionRead) {
		t.Fatal("expected inactive principal to keep self-read")
	}
	if Decide(principal, Resource{OwnerUserID: "user-1"}, ActionWrite) {
		t.Fatal("expected inactive principal denied self-write")
	}
	if Decide(principal, Resource{ProgramID: "program-1"}, ActionRead) {
		t.Fatal("expected inactive principal denied program read despite admin role")
	}
	if Decide(principal, Resource{ProgramID: "program-1", CompanyID: strPtr("company-1")}, ActionRead) {
		t.Fatal("expected inactive principal denied company read")
	}
}

func TestCanViewHistory(t *testing.T) {
	res := Resource{ProgramID: "program-1", CompanyID: strPtr("company-1")}

	programAdmin := Principal{UserID: "u1", Active: true, Memberships: map[string]Role{"program-1": RoleAdmin}}
	if !CanViewHistory(programAdmin, res) {
		t.Fatal("expected program admin allowed")
	}

	editor := Principal{UserID: "u2", Active: true, Memberships: map[string]Role{"program-1": RoleEdit}}
	if CanViewHistory(editor, res) {
		t.Fatal("expected editor denied")
	}

	companyAdmin := Principal{UserID: "u3", Active: true, CompanyID: strPtr("company-1"), CompanyAdmin: true}
	if !CanViewHistory(companyAdmin, res) {
		t.Fatal("expected company admin allowed")
	}

	foreignAdmin := Principal{UserID: "u4", Active: true, CompanyID: strPtr("company-2"), CompanyAdmin: true}
	if CanViewHistory(foreignAdmin, res) {
		t.Fatal("expected foreign company admin denied")
	}
}

func TestCanViewUserHistory(t *testing.T) {
	subject := User{ID: "user-1", CompanyID: strPtr("company-1")}

	companyAdmin := Principal{UserID: "u1", Active: true, CompanyID: strPtr("company-1"), CompanyAdmin: true}
	if !CanViewUserHistory(companyAdmin, subject) {
		t.Fatal("expected company admin allowed")
	}

	plainMember := Principal{UserID: "u2", Active: true, CompanyID: strPtr("company-1")}
	if CanViewUserHistory(plainMember, subject) {
		t.Fatal("expected plain member denied")
	}

	super := Principal{UserID: "u3", Active: true, SuperAdmin: true}
	if !CanViewUserHistory(super, subject) {
		t.Fatal("expected super admin allowed")
	}
}
