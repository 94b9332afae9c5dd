package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of admin roles. Values are stored verbatim in the
// admins.role and invitations.role columns and carried in the JWT role claim.
type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleProvinceAdmin Role = "PROVINCE_ADMIN"
	RoleVolunteer     Role = "VOLUNTEER"
)

// Roles lists every role in descending order of authority.
var Roles = []Role{RoleSuperAdmin, RoleProvinceAdmin, RoleVolunteer}

// ParseRole normalizes s and returns the matching Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleSuperAdmin, RoleProvinceAdmin, RoleVolunteer:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidationFailed, s)
}

func (r Role) String() string { return string(r) }

// Scope is the geographic area a role's authority is restricted to. A nil
// field means "unrestricted" at that level.
type Scope struct {
	ProvinceID *uint64 `json:"province_id,omitempty"`
	CityID     *uint64 `json:"city_id,omitempty"`
}

// CheckScope reports whether s is acceptable for r. Volunteers need a city,
// province admins need a province, super admins carry no scope at all.
func (r Role) CheckScope(s Scope) error {
	switch r {
	case RoleSuperAdmin:
		if s.ProvinceID != nil || s.CityID != nil {
			return fmt.Errorf("%w: %s cannot be scoped", ErrInvalidScope, r)
		}
		return nil
	case RoleProvinceAdmin:
		if s.ProvinceID == nil || *s.ProvinceID == 0 {
			return fmt.Errorf("%w: %s requires province_id", ErrInvalidScope, r)
		}
		return nil
	case RoleVolunteer:
		if s.CityID == nil || *s.CityID == 0 {
			return fmt.Errorf("%w: %s requires city_id", ErrInvalidScope, r)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown role %q", ErrInvalidScope, string(r))
}

// CanInvite reports whether an admin holding r may issue an invitation for
// target. Province admins may only recruit volunteers; the caller still has
// to confirm the volunteer's city lies inside the inviter's province.
func (r Role) CanInvite(target Role) bool {
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleProvinceAdmin:
		return target == RoleVolunteer
	case RoleVolunteer:
		return false
	}
	return false
}

// CanReview reports whether r may approve or reject donations.
func (r Role) CanReview() bool {
	switch r {
	case RoleSuperAdmin, RoleProvinceAdmin:
		return true
	case RoleVolunteer:
		return false
	}
	return false
}
