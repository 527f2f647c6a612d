package core

import "github.com/pkg/errors"

// Role is the single role of an account. It is fixed at creation.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
	RoleOther   Role = "other"
)

// Roles lists every valid Role.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin, RoleOther}

var errInvalidRole = errors.New("invalid role")

// ParseRole returns the Role named s or an error if s is not a known role.
func ParseRole(s string) (Role, error) {
	role := Role(CleanString(s, true /* lower */))
	if !role.Valid() {
		return "", errors.Wrapf(errInvalidRole, "%q", s)
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleOther:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
