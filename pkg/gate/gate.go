// Package gate decides whether a protected destination may render for the
// current auth state, and remembers where to send the user after login.
package gate

import (
	"strings"

	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/go-go-golems/lawchat/pkg/conversation"
)

const (
	LoginPath          = "/login"
	SignupPath         = "/signup"
	ForgotPasswordPath = "/forgot-password"
	ProfilePath        = "/profile"
	DefaultLanding     = "/"

	categoryPrefix = "/category/"
)

type Outcome int

const (
	// Loading means the auth state is still being resolved; defer routing.
	Loading Outcome = iota
	Redirect
	Render
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome Outcome
	// To and From are set for Redirect: To is the login entry point, From the
	// destination that was originally requested.
	To   string
	From string
}

// Decide is a pure function of the auth status and the requested path.
func Decide(status auth.Status, requested string) Decision {
	switch status {
	case auth.StatusValidating:
		return Decision{Outcome: Loading}
	case auth.StatusAuthenticated:
		return Decision{Outcome: Render}
	case auth.StatusUnauthenticated, auth.StatusError:
		return Decision{Outcome: Redirect, To: LoginPath, From: requested}
	default:
		return Decision{Outcome: Redirect, To: LoginPath, From: requested}
	}
}

func IsPublic(path string) bool {
	switch path {
	case LoginPath, SignupPath, ForgotPasswordPath:
		return true
	}
	return false
}

// CategoryPath is the route for a category, e.g. "Tax Law" → /category/tax-law.
func CategoryPath(category string) string {
	return categoryPrefix + conversation.CategorySlug(category)
}

// CategorySlug extracts the slug from a /category/{slug} path.
func CategorySlug(path string) (string, bool) {
	if !strings.HasPrefix(path, categoryPrefix) {
		return "", false
	}
	slug := strings.Trim(strings.TrimPrefix(path, categoryPrefix), "/")
	return slug, slug != ""
}
