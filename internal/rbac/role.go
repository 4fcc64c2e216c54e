// Package rbac implements the role and capability model guarding the
// admin back-office: the default permission table, the per-identity
// permission evaluator and the HTTP access guard.
package rbac

import "fmt"

// Role is a named privilege tier assigned to one administrative identity.
type Role string

// Known roles, ordered by privilege (administrator highest).
const (
	RoleAdministrator Role = "administrator"
	RoleEditor        Role = "editor"
	RoleCollaborator  Role = "collaborator"
	RoleViewer        Role = "viewer"
)

// rolePrivilege orders roles for minimum-role comparisons. Unknown roles
// rank below viewer so comparisons fail closed.
var rolePrivilege = map[Role]int{
	RoleAdministrator: 4,
	RoleEditor:        3,
	RoleCollaborator:  2,
	RoleViewer:        1,
}

// Roles lists every known role from most to least privileged.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleEditor, RoleCollaborator, RoleViewer}
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role is part of the closed enum.
func (r Role) Valid() bool {
	_, ok := rolePrivilege[r]
	return ok
}

// AtLeast reports whether the role carries at least the privilege of min.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	have, ok := rolePrivilege[r]
	if !ok {
		return false
	}
	want, ok := rolePrivilege[min]
	if !ok {
		return false
	}
	return have >= want
}
