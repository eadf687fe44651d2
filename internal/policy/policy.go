// Package policy evaluates role-based permission checks against an
// immutable role→permission table. Absence of an explicit grant is a
// denial; roles never imply one another.
package policy

import (
	"errors"
	"strings"
	"sync/atomic"
)

var (
	// ErrUnavailable reports that no permission table has been loaded.
	// Callers must fail closed.
	ErrUnavailable = errors.New("policy: permission table unavailable")
)

// Decision is the outcome of a policy evaluation.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Table is an immutable snapshot of the role→permission mapping. A reload
// builds a new Table and swaps it in; a Table is never mutated after
// construction.
type Table struct {
	grants map[string]map[string]struct{}
}

// NewTable builds a snapshot from role→permissions pairs. Role and
// permission keys are trimmed and lower-cased.
func NewTable(roles map[string][]string) *Table {
	grants := make(map[string]map[string]struct{}, len(roles))
	for role, perms := range roles {
		role = normalize(role)
		if role == "" {
			continue
		}
		set := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			perm = normalize(perm)
			if perm == "" {
				continue
			}
			set[perm] = struct{}{}
		}
		grants[role] = set
	}
	return &Table{grants: grants}
}

// Allows reports whether the permission is reachable from any role in the
// set.
func (t *Table) Allows(roleSet []string, permission string) bool {
	permission = normalize(permission)
	if permission == "" {
		return false
	}
	for _, role := range roleSet {
		if set, ok := t.grants[normalize(role)]; ok {
			if _, ok := set[permission]; ok {
				return true
			}
		}
	}
	return false
}

// Roles returns the role names present in the snapshot.
func (t *Table) Roles() []string {
	out := make([]string, 0, len(t.grants))
	for role := range t.grants {
		out = append(out, role)
	}
	return out
}

// Engine answers permission checks against the current table snapshot.
// Evaluation is pure and side-effect free; the snapshot reference is
// swapped atomically on reload so in-flight evaluations never observe a
// partially updated table.
type Engine struct {
	table atomic.Pointer[Table]
}

// NewEngine constructs an Engine. A nil table leaves the engine
// unavailable until Swap is called.
func NewEngine(table *Table) *Engine {
	e := &Engine{}
	if table != nil {
		e.table.Store(table)
	}
	return e
}

// Evaluate maps (roleSet, permission) to a Decision. Deny-by-default: a
// permission not explicitly granted through a role is denied. With no
// loaded table the result is Deny alongside ErrUnavailable.
func (e *Engine) Evaluate(roleSet []string, permission string) (Decision, error) {
	table := e.table.Load()
	if table == nil {
		return Deny, ErrUnavailable
	}
	if table.Allows(roleSet, permission) {
		return Allow, nil
	}
	return Deny, nil
}

// Swap atomically replaces the table snapshot.
func (e *Engine) Swap(table *Table) {
	if table == nil {
		return
	}
	e.table.Store(table)
}

// Snapshot returns the current table, or nil when none is loaded.
func (e *Engine) Snapshot() *Table {
	return e.table.Load()
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
