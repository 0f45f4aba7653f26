package model

import "strings"

// Role is the author role tag used for display styling.
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleInstructor
	RoleAdmin
)

func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student", "user":
		return RoleStudent
	case "instructor", "teacher":
		return RoleInstructor
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleInstructor:
		return "instructor"
	case RoleAdmin:
		return "admin"
	default:
		return ""
	}
}

// Label is the badge text shown next to an author's name.
func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleInstructor:
		return "Instructor"
	case RoleAdmin:
		return "Admin"
	default:
		return ""
	}
}

// Color is the badge color for the role.
func (r Role) Color() string {
	switch r {
	case RoleStudent:
		return "blue"
	case RoleInstructor:
		return "green"
	case RoleAdmin:
		return "red"
	default:
		return "gray"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}
