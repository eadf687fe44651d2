package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testTable() *Table {
	return NewTable(map[string][]string{
		"admin": {
			PermMembersView, PermMembersEdit,
			PermDonationsView, PermDonationsApprove,
			PermBeneficiariesView, PermBeneficiariesEdit,
			PermRolesManage,
		},
		"manager": {PermMembersView, PermDonationsView, PermDonationsApprove, PermBeneficiariesView},
		"member":  {PermDonationsView},
		"viewer":  {},
	})
}

func TestEvaluateMatrix(t *testing.T) {
	engine := NewEngine(testTable())

	allPerms := []string{
		PermMembersView, PermMembersEdit,
		PermDonationsView, PermDonationsApprove,
		PermBeneficiariesView, PermBeneficiariesEdit,
		PermRolesManage,
	}
	granted := map[string]map[string]bool{
		"admin": {
			PermMembersView: true, PermMembersEdit: true,
			PermDonationsView: true, PermDonationsApprove: true,
			PermBeneficiariesView: true, PermBeneficiariesEdit: true,
			PermRolesManage: true,
		},
		"manager": {
			PermMembersView: true, PermDonationsView: true,
			PermDonationsApprove: true, PermBeneficiariesView: true,
		},
		"member": {PermDonationsView: true},
		"viewer": {},
	}

	// Exhaustive matrix: every role against every permission; Allow iff
	// the grant is explicit in the table.
	for role, grants := range granted {
		for _, perm := range allPerms {
			decision, err := engine.Evaluate([]string{role}, perm)
			if err != nil {
				t.Fatalf("Evaluate(%s, %s): %v", role, perm, err)
			}
			want := Deny
			if grants[perm] {
				want = Allow
			}
			if decision != want {
				t.Fatalf("Evaluate(%s, %s) = %v, want %v", role, perm, decision, want)
			}
		}
	}
}

func TestEvaluateRoleSetUnion(t *testing.T) {
	engine := NewEngine(testTable())

	decision, err := engine.Evaluate([]string{"member", "manager"}, PermMembersView)
	if err != nil || decision != Allow {
		t.Fatalf("expected union allow, got %v %v", decision, err)
	}
	decision, err = engine.Evaluate([]string{"member", "viewer"}, PermMembersView)
	if err != nil || decision != Deny {
		t.Fatalf("expected deny, got %v %v", decision, err)
	}
}

func TestEvaluateDenyByDefault(t *testing.T) {
	engine := NewEngine(testTable())

	// Unknown permission, unknown role, empty role-set: all denied.
	cases := []struct {
		roles []string
		perm  string
	}{
		{[]string{"admin"}, "secret.export"},
		{[]string{"ghost"}, PermMembersView},
		{nil, PermMembersView},
		{[]string{"admin"}, ""},
	}
	for _, tc := range cases {
		decision, err := engine.Evaluate(tc.roles, tc.perm)
		if err != nil {
			t.Fatalf("Evaluate(%v, %q): %v", tc.roles, tc.perm, err)
		}
		if decision != Deny {
			t.Fatalf("Evaluate(%v, %q) = %v, want Deny", tc.roles, tc.perm, decision)
		}
	}
}

func TestEvaluateNoImplicitHierarchy(t *testing.T) {
	// admin is not granted a permission that only member holds unless the
	// table says so explicitly.
	engine := NewEngine(NewTable(map[string][]string{
		"admin":  {PermRolesManage},
		"member": {PermDonationsView},
	}))
	decision, err := engine.Evaluate([]string{"admin"}, PermDonationsView)
	if err != nil || decision != Deny {
		t.Fatalf("expected Deny for admin without explicit grant, got %v %v", decision, err)
	}
}

func TestEvaluateUnavailableFailsClosed(t *testing.T) {
	engine := NewEngine(nil)
	decision, err := engine.Evaluate([]string{"admin"}, PermMembersView)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if decision != Deny {
		t.Fatalf("unavailable table must deny, got %v", decision)
	}
}

func TestSwapReplacesSnapshot(t *testing.T) {
	engine := NewEngine(NewTable(map[string][]string{"member": {}}))
	if decision, _ := engine.Evaluate([]string{"member"}, PermDonationsView); decision != Deny {
		t.Fatal("expected deny before swap")
	}
	engine.Swap(NewTable(map[string][]string{"member": {PermDonationsView}}))
	if decision, _ := engine.Evaluate([]string{"member"}, PermDonationsView); decision != Allow {
		t.Fatal("expected allow after swap")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	doc := []byte("roles:\n  admin:\n    - members.view\n  member: []\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !table.Allows([]string{"admin"}, "members.view") {
		t.Fatal("expected admin grant from file")
	}
	if table.Allows([]string{"member"}, "members.view") {
		t.Fatal("member must not inherit admin grants")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Parse([]byte("roles: {}")); err == nil {
		t.Fatal("expected error for empty table")
	}
	if _, err := Parse([]byte("roles: [broken")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
