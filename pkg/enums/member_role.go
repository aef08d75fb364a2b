package enums

import "fmt"

// MemberRole is the role carried in access tokens.
type MemberRole string

const (
	MemberRoleUser  MemberRole = "user"
	MemberRoleAdmin MemberRole = "admin"
)

var validMemberRoles = []MemberRole{
	MemberRoleUser,
	MemberRoleAdmin,
}

// String implements fmt.Stringer.
func (v MemberRole) String() string {
	return string(v)
}

// IsValid reports whether the value is a known MemberRole.
func (v MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
