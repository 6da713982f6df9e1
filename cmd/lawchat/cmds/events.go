package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/lawchat/pkg/eventbus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type EventsTailCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*EventsTailCommand)(nil)

type EventsTailSettings struct {
	Session string `glazed:"session"`
	JSON    bool   `glazed:"json"`
}

func NewEventsTailCommand() (cmds.Command, error) {
	redisSection, err := eventbus.NewSection()
	if err != nil {
		return nil, err
	}
	return &EventsTailCommand{CommandDescription: cmds.NewCommandDescription(
		"tail",
		cmds.WithShort("Follow conversation events published to Redis"),
		cmds.WithLong("Reads the conversation event stream that `lawchat chat --redis-enabled` publishes, "+
			"starting at the current end of the stream."),
		cmds.WithFlags(
			fields.New("session", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only show events of this session")),
			fields.New("json", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Print raw JSON envelopes")),
		),
		cmds.WithSections(redisSection),
	)}, nil
}

func (c *EventsTailCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &EventsTailSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	rs := eventbus.Settings{}
	if err := parsed.DecodeSectionInto(eventbus.SectionSlug, &rs); err != nil {
		return err
	}
	if !rs.Enabled {
		return errors.New("events tail needs --redis-enabled")
	}
	if rs.Stream == "" {
		rs.Stream = eventbus.DefaultStream
	}
	if err := eventbus.EnsureGroupAtTail(ctx, rs.Addr, rs.Stream, rs.Group); err != nil {
		return errors.Wrap(err, "ensure consumer group")
	}

	bus, err := eventbus.Build(rs)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	log.Info().Str("stream", bus.Topic()).Str("group", rs.Group).Msg("tailing conversation events")
	return bus.Tail(ctx, func(env eventbus.Envelope) error {
		if s.Session != "" && env.SessionID != s.Session {
			return nil
		}
		if s.JSON {
			b, err := env.Marshal()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(b))
			return err
		}
		_, err := fmt.Fprintln(w, formatEnvelope(env))
		return err
	})
}

func formatEnvelope(env eventbus.Envelope) string {
	line := fmt.Sprintf("%s %-18s session=%s", env.At().Format("15:04:05.000"), env.Type, env.SessionID)
	switch {
	case env.Message != nil:
		text := env.Message.Text
		if r := []rune(text); len(r) > 80 {
			text = string(r[:77]) + "..."
		}
		line += fmt.Sprintf(" %s: %q", env.Message.Origin, text)
	case env.Category != "" || env.Language != "":
		line += fmt.Sprintf(" category=%q language=%q", env.Category, env.Language)
	}
	if env.Failed {
		line += " failed"
	}
	return line
}
