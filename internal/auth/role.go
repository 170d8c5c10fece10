package auth

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is the single enumerated role type; comparisons are by value everywhere.
type Role string

const (
	RoleTrainee        Role = "Trainee"
	RoleFacilitator    Role = "Facilitator"
	RoleProgramManager Role = "ProgramManager"
	RoleSuperAdmin     Role = "SuperAdmin"
)

// Roles lists every valid role.
var Roles = []Role{RoleTrainee, RoleFacilitator, RoleProgramManager, RoleSuperAdmin}

var errUnknownRole = errors.New("unknown role")

// ParseRole maps any case/whitespace variant ("Program Manager", "programmanager")
// onto its canonical Role.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	for _, r := range Roles {
		if strings.ToLower(string(r)) == key {
			return r, nil
		}
	}
	return "", errors.Wrapf(errUnknownRole, "%q", s)
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// In reports whether r is any of roles.
func (r Role) In(roles ...Role) bool {
	for _, v := range roles {
		if v == r {
			return true
		}
	}
	return false
}
