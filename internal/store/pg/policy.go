package pg

import (
	"context"

	"github.com/kafkasder-git/panel/internal/policy"
)

// LoadPolicyTable builds a permission snapshot from the role_permissions
// table. The result is immutable; callers swap it into a policy engine.
func (s *Store) LoadPolicyTable(ctx context.Context) (*policy.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role, permission
		from role_permissions
		order by role, permission
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make(map[string][]string)
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, err
		}
		grants[role] = append(grants[role], perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return policy.NewTable(grants), nil
}
