package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/lawchat/pkg/config"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/gate"
	"github.com/go-go-golems/lawchat/pkg/persistence/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type AskCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*AskCommand)(nil)

type AskSettings struct {
	Question string `glazed:"question"`
	Category string `glazed:"category"`
	Language string `glazed:"language"`
	Sources  bool   `glazed:"sources"`
}

func NewAskCommand() (cmds.Command, error) {
	sections, err := config.ChatSections()
	if err != nil {
		return nil, err
	}
	return &AskCommand{CommandDescription: cmds.NewCommandDescription(
		"ask",
		cmds.WithShort("Ask a single question and print the answer"),
		cmds.WithLong("Starts a new session, asks one question in the given category and prints the answer. "+
			"The exchange is recorded in the transcript store like a chat session."),
		cmds.WithFlags(
			fields.New("category", fields.TypeString,
				fields.WithHelp("Legal category, by name or slug (see `lawchat categories`)"),
				fields.WithRequired(true)),
			fields.New("language", fields.TypeString,
				fields.WithDefault(conversation.DefaultLanguage),
				fields.WithHelp("Answer language")),
			fields.New("sources", fields.TypeBool,
				fields.WithDefault(true),
				fields.WithHelp("Print the sources the answer cites")),
		),
		cmds.WithArguments(
			fields.New("question", fields.TypeString,
				fields.WithHelp("The question to ask"),
				fields.WithRequired(true)),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *AskCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &AskSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	if strings.TrimSpace(s.Question) == "" {
		return errors.New("question is empty")
	}
	app, err := openApp(ctx, parsed, config.ChatSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	snap := app.Auth.Start(ctx)
	if d := gate.Decide(snap.Status, gate.CategoryPath(s.Category)); d.Outcome != gate.Render {
		return errNotLoggedIn
	}

	bootstrap, err := startSession(ctx, app.Client)
	if err != nil {
		return err
	}

	store, err := config.OpenTranscripts(app.Settings.Transcript)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	recorder := transcript.NewRecorder(store, snap.User.Email)

	machine := conversation.New(app.Client, bootstrap, conversation.WithObserver(recorder.Observer()))
	if err := machine.SelectCategory(s.Category); err != nil {
		return errors.Wrapf(err, "known categories: %s", strings.Join(bootstrap.Categories, ", "))
	}
	if err := machine.SelectLanguage(s.Language); err != nil {
		return err
	}

	sent, err := machine.SendMessage(ctx, s.Question)
	if err != nil {
		return err
	}
	if !sent {
		return errors.New("question was not sent")
	}

	l := machine.Log()
	answer := l.At(l.Len() - 1)
	log.Debug().Str("session", machine.SessionID()).Bool("error", answer.Error).Msg("question answered")
	if answer.Error {
		return errors.New(answer.Text)
	}
	if _, err := fmt.Fprintln(w, answer.Text); err != nil {
		return err
	}
	if s.Sources && len(answer.Sources) > 0 {
		if _, err := fmt.Fprintln(w, "\nSources:"); err != nil {
			return err
		}
		for _, src := range answer.Sources {
			if _, err := fmt.Fprintf(w, "  - %s\n", src); err != nil {
				return err
			}
		}
	}
	return nil
}
