package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/lawchat/pkg/config"
	"github.com/go-go-golems/lawchat/pkg/session"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// openApp decodes the named sections and builds the shared components.
func openApp(ctx context.Context, parsed *values.Values, slugs ...string) (*config.App, error) {
	s, err := config.Decode(parsed, slugs...)
	if err != nil {
		return nil, err
	}
	return config.NewApp(ctx, s)
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

var errNotLoggedIn = errors.New("not logged in; run `lawchat login` first")

// startSession runs the initializer and reduces a failure to the message
// users see; the cause goes to the log.
func startSession(ctx context.Context, backend session.Backend) (*session.Bootstrap, error) {
	bootstrap, err := session.NewInitializer(backend).Run(ctx)
	if err == nil {
		return bootstrap, nil
	}
	var ie *session.InitError
	if errors.As(err, &ie) {
		log.Debug().Err(ie.Err).Str("step", ie.Step).Msg("session start failed")
		return nil, errors.New(ie.Message)
	}
	return nil, err
}
