package auth

import "github.com/go-go-golems/lawchat/pkg/api"

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusValidating      Status = "validating"
	StatusAuthenticated   Status = "authenticated"
	StatusError           Status = "error"
)

// Snapshot is an immutable view of the auth session at one point in time.
//
// Token and User move together: a token without a user only appears while
// Status is StatusValidating.
type Snapshot struct {
	Status Status
	User   *api.User
	Token  string
	Err    string
}

func (s Snapshot) Loading() bool { return s.Status == StatusValidating }

func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

const (
	loginFallback  = "Login failed. Please try again."
	signupFallback = "Signup failed. Please try again."
	resetFallback  = "Could not request a password reset. Please try again."
	updateFallback = "Could not update the password. Please try again."
)
