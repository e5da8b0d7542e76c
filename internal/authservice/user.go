package authservice

import (
	"github.com/classpoint/gatehouse/internal/roles"
)

// Account status values reported by the school API
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusPending   = "pending_verification"
)

// User is the denormalized account snapshot persisted beside the credential
// pair. It answers role checks synchronously; it is only a rendering hint
// until a refresh confirms it against the server.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Role          roles.Role `json:"role"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"emailVerified"`
	FirstName     string     `json:"firstName,omitempty"`
	LastName      string     `json:"lastName,omitempty"`
	AvatarURL     string     `json:"avatarUrl,omitempty"`
}

// FullName returns the display name, falling back to the email address
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}
