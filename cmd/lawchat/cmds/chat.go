package cmds

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/go-go-golems/lawchat/pkg/config"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/eventbus"
	"github.com/go-go-golems/lawchat/pkg/gate"
	"github.com/go-go-golems/lawchat/pkg/persistence/transcript"
	"github.com/go-go-golems/lawchat/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ChatCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = (*ChatCommand)(nil)

type ChatSettings struct {
	Category string `glazed:"category"`
	TUILog   string `glazed:"tui-log"`
	Plain    bool   `glazed:"plain"`
}

func NewChatCommand() (cmds.Command, error) {
	sections, err := config.ChatSections()
	if err != nil {
		return nil, err
	}
	return &ChatCommand{CommandDescription: cmds.NewCommandDescription(
		"chat",
		cmds.WithShort("Open the interactive legal assistant"),
		cmds.WithLong("Opens a full screen chat. Pick a category with tab, ask questions with enter. "+
			"When no valid login is stored you are asked for your credentials first."),
		cmds.WithFlags(
			fields.New("category", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Start in this category (name or slug)")),
			fields.New("tui-log", fields.TypeString,
				fields.WithDefault("/tmp/lawchat.log"),
				fields.WithHelp("File the chat logs to while the screen is taken over")),
			fields.New("plain", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Show answers as plain text instead of rendered markdown")),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *ChatCommand) Run(ctx context.Context, parsed *values.Values) error {
	s := &ChatSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}

	restore, err := logToFile(s.TUILog)
	if err != nil {
		return err
	}
	defer restore()

	app, err := openApp(ctx, parsed, config.ChatSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	snap := app.Auth.Start(ctx)
	nav := gate.NewNavigator(snap.Status)
	unbind := nav.Bind(app.Auth)
	defer unbind()

	target := gate.DefaultLanding
	if s.Category != "" {
		target = gate.CategoryPath(s.Category)
	}
	if d := nav.Visit(target); d.Outcome == gate.Redirect {
		if !interactive() {
			return errNotLoggedIn
		}
		creds := ui.Credentials{}
		if snap.User != nil {
			creds.Email = snap.User.Email
		}
		if err := ui.RunLoginForm(ctx, &creds); err != nil {
			return err
		}
		if _, err := app.Auth.Login(ctx, creds.Email, creds.Password); err != nil {
			return errors.New(app.Auth.Snapshot().Err)
		}
		target = nav.CompleteLogin()
	}
	user := app.Auth.Snapshot().User

	bootstrap, err := startSession(ctx, app.Client)
	if err != nil {
		return err
	}

	store, err := config.OpenTranscripts(app.Settings.Transcript)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	forwarder := ui.NewEventForwarder(256)
	opts := []conversation.Option{
		conversation.WithWelcome(),
		conversation.WithCategoryNotices(),
		conversation.WithObserver(forwarder.Observer()),
		conversation.WithObserver(transcript.NewRecorder(store, user.Email).Observer()),
	}
	if app.Settings.Events.Enabled {
		bus, err := eventbus.BuildPublisher(app.Settings.Events)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()
		opts = append(opts, conversation.WithObserver(bus.Observer()))
	}
	machine := conversation.New(app.Client, bootstrap, opts...)

	if slug, ok := gate.CategorySlug(target); ok {
		if res := machine.ApplyRouteCategory(slug); res.Redirect != "" {
			nav.Visit(res.Redirect)
		}
	}

	chatOpts := []ui.ChatOption{ui.WithUser(user.DisplayName())}
	if !s.Plain {
		chatOpts = append(chatOpts, ui.WithMarkdown(ui.GlamourRenderer))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewChatModel(ctx, machine, forwarder, chatOpts...)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	loggedOut := make(chan struct{})
	unsubscribe := app.Auth.Subscribe(func(snap auth.Snapshot) {
		if snap.Status == auth.StatusUnauthenticated {
			select {
			case <-loggedOut:
			default:
				close(loggedOut)
			}
		}
	})
	defer unsubscribe()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		select {
		case <-ctx.Done():
		case <-loggedOut:
			log.Info().Msg("session expired, closing chat")
			nav.RedirectToLogin()
			p.Quit()
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	if nav.Location() == gate.LoginPath {
		fmt.Fprintln(os.Stderr, "Your session expired. Run `lawchat login` and start the chat again.")
	}
	return nil
}

// logToFile points the global logger at path while the terminal belongs to
// the chat screen.
func logToFile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open tui log")
	}
	prev := log.Logger
	log.Logger = zerolog.New(f).With().Timestamp().Logger().Level(prev.GetLevel())
	log.Info().Msg("lawchat chat started")
	return func() {
		log.Logger = prev
		_ = f.Close()
	}, nil
}
