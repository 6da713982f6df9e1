package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/pkg/errors"
)

type Credentials struct {
	Email    string
	Password string
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%s is required", label)
		}
		return nil
	}
}

// NewLoginForm binds a huh form to c. Fields already set are kept as
// defaults.
func NewLoginForm(c *Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&c.Email).
				Validate(required("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(required("password")),
		),
	)
}

func RunLoginForm(ctx context.Context, c *Credentials) error {
	return errors.Wrap(NewLoginForm(c).RunWithContext(ctx), "login form")
}

func NewSignupForm(p *api.SignupRequest) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Full name").Value(&p.FullName),
			huh.NewInput().Title("Email").Value(&p.Email).Validate(required("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&p.Password).
				Validate(required("password")),
		),
	)
}

func RunSignupForm(ctx context.Context, p *api.SignupRequest) error {
	return errors.Wrap(NewSignupForm(p).RunWithContext(ctx), "signup form")
}
