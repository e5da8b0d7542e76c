package roles

import (
	"fmt"
	"strings"
)

// Role classifies a user and determines which portals they may access
type Role string

// The closed role enumeration. Adding a role here is the only change needed
// for it to flow through parsing, validation, and the named sets below.
const (
	Admin            Role = "admin"
	Coordinator      Role = "coordinator"
	Teacher          Role = "teacher"
	Student          Role = "student"
	Parent           Role = "parent"
	Librarian        Role = "librarian"
	MediaCoordinator Role = "media_coordinator"
)

// All lists every valid role
var All = []Role{
	Admin,
	Coordinator,
	Teacher,
	Student,
	Parent,
	Librarian,
	MediaCoordinator,
}

// Named role sets. Guards reference these instead of repeating literal
// role lists at each call site, so a new role is added in one place.
var (
	// Staff covers every school-side employee portal
	Staff = []Role{Admin, Coordinator, Teacher, Librarian, MediaCoordinator}

	// Administrative covers users who manage other users
	Administrative = []Role{Admin, Coordinator}

	// Library covers users who manage the library portal
	Library = []Role{Admin, Librarian, MediaCoordinator}
)

// Valid reports whether r is one of the closed enumeration
func (r Role) Valid() bool {
	for _, known := range All {
		if r == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// Parse converts a raw string into a Role
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Contains reports whether set includes r
func Contains(set []Role, r Role) bool {
	for _, member := range set {
		if member == r {
			return true
		}
	}
	return false
}

// Join renders a role set for display, e.g. "admin, coordinator"
func Join(set []Role) string {
	parts := make([]string, len(set))
	for i, r := range set {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
