package core

import (
	"context"
	"errors"
	"time"
)

// User represents an authenticated principal returned to handlers.
// It is derived from a UserRecord at login time and never carries the
// password hash.
type User struct {
	ID        int64
	Username  string
	Name      string
	Roles     []string
	CreatedAt time.Time
}

// HasRole reports whether the user carries the given role tag.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authentication failure kinds. Handlers never surface anything beyond
// these; collaborator faults are downgraded to ErrServiceUnavailable at
// the service boundary.
var (
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownUser is returned when no record exists for the username.
	ErrUnknownUser = errors.New("unknown user")
	// ErrMissingCredentials is returned when the login form is incomplete.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrServiceUnavailable is returned when a collaborator fault prevents
	// verification (store unreachable, lookup timeout).
	ErrServiceUnavailable = errors.New("authentication service unavailable")
)

// AuthService defines authentication and signup behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (User, error)
	Register(ctx context.Context, in SignupInput) (int64, error)
}
