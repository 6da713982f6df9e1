package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/go-go-golems/lawchat/pkg/config"
	"github.com/go-go-golems/lawchat/pkg/ui"
	"github.com/pkg/errors"
)

type LoginCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*LoginCommand)(nil)

type LoginSettings struct {
	Email    string `glazed:"email"`
	Password string `glazed:"password"`
}

func NewLoginCommand() (cmds.Command, error) {
	sections, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	return &LoginCommand{CommandDescription: cmds.NewCommandDescription(
		"login",
		cmds.WithShort("Log in and remember the token"),
		cmds.WithLong("Log in with email and password. Missing values are prompted for when running in a terminal."),
		cmds.WithFlags(
			fields.New("email", fields.TypeString, fields.WithHelp("Account email"), fields.WithDefault("")),
			fields.New("password", fields.TypeString, fields.WithHelp("Account password"), fields.WithDefault("")),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *LoginCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &LoginSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	creds := ui.Credentials{Email: s.Email, Password: s.Password}
	if (creds.Email == "" || creds.Password == "") && interactive() {
		if err := ui.RunLoginForm(ctx, &creds); err != nil {
			return err
		}
	}

	user, err := app.Auth.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return errors.New(app.Auth.Snapshot().Err)
	}
	_, err = fmt.Fprintf(w, "Logged in as %s\n", user.DisplayName())
	return err
}

type SignupCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*SignupCommand)(nil)

type SignupSettings struct {
	Email     string `glazed:"email"`
	Password  string `glazed:"password"`
	FullName  string `glazed:"full-name"`
	FirstName string `glazed:"first-name"`
	LastName  string `glazed:"last-name"`
}

func NewSignupCommand() (cmds.Command, error) {
	sections, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	return &SignupCommand{CommandDescription: cmds.NewCommandDescription(
		"signup",
		cmds.WithShort("Create an account and log in"),
		cmds.WithFlags(
			fields.New("email", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Account email")),
			fields.New("password", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Account password")),
			fields.New("full-name", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Full name")),
			fields.New("first-name", fields.TypeString, fields.WithDefault(""), fields.WithHelp("First name")),
			fields.New("last-name", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Last name")),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *SignupCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &SignupSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	profile := api.SignupRequest{
		Email:     s.Email,
		Password:  s.Password,
		FullName:  s.FullName,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
	if profile.FullName == "" {
		profile.FullName = strings.TrimSpace(s.FirstName + " " + s.LastName)
	}
	if (profile.Email == "" || profile.Password == "") && interactive() {
		if err := ui.RunSignupForm(ctx, &profile); err != nil {
			return err
		}
	}

	user, err := app.Auth.Signup(ctx, profile)
	if err != nil {
		return errors.New(app.Auth.Snapshot().Err)
	}
	_, err = fmt.Fprintf(w, "Welcome, %s\n", user.DisplayName())
	return err
}

type LogoutCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*LogoutCommand)(nil)

func NewLogoutCommand() (cmds.Command, error) {
	sections, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	return &LogoutCommand{CommandDescription: cmds.NewCommandDescription(
		"logout",
		cmds.WithShort("Forget the stored token"),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *LogoutCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Auth.Logout(ctx)
	_, err = fmt.Fprintln(w, "Logged out")
	return err
}

type WhoamiCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*WhoamiCommand)(nil)

func NewWhoamiCommand() (cmds.Command, error) {
	sections, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	return &WhoamiCommand{CommandDescription: cmds.NewCommandDescription(
		"whoami",
		cmds.WithShort("Show the profile of the logged in user"),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *WhoamiCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	snap := app.Auth.Start(ctx)
	if snap.Status != auth.StatusAuthenticated {
		return errNotLoggedIn
	}
	u := snap.User
	_, err = fmt.Fprintf(w, "Name:   %s\nEmail:  %s\n", u.DisplayName(), u.Email)
	if err == nil && u.ID != "" {
		_, err = fmt.Fprintf(w, "ID:     %s\n", u.ID)
	}
	return err
}

type ResetPasswordCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*ResetPasswordCommand)(nil)

func NewResetPasswordCommand() (cmds.Command, error) {
	sections, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	return &ResetPasswordCommand{CommandDescription: cmds.NewCommandDescription(
		"reset-password",
		cmds.WithShort("Request a password reset email"),
		cmds.WithArguments(
			fields.New("email", fields.TypeString, fields.WithHelp("Account email"), fields.WithRequired(true)),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *ResetPasswordCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &struct {
		Email string `glazed:"email"`
	}{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Auth.ResetPassword(ctx, s.Email); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "If the account exists, a reset link is on its way.")
	return err
}

type UpdatePasswordCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*UpdatePasswordCommand)(nil)

func NewUpdatePasswordCommand() (cmds.Command, error) {
	sections, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	return &UpdatePasswordCommand{CommandDescription: cmds.NewCommandDescription(
		"update-password",
		cmds.WithShort("Set a new password using a reset token"),
		cmds.WithFlags(
			fields.New("reset-token", fields.TypeString, fields.WithHelp("Token from the reset email"), fields.WithRequired(true)),
			fields.New("new-password", fields.TypeString, fields.WithHelp("New password"), fields.WithRequired(true)),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *UpdatePasswordCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &struct {
		ResetToken  string `glazed:"reset-token"`
		NewPassword string `glazed:"new-password"`
	}{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Auth.UpdatePassword(ctx, s.ResetToken, s.NewPassword); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "Password updated. You can log in now.")
	return err
}
