package cmds

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/lawchat/pkg/config"
	"github.com/go-go-golems/lawchat/pkg/persistence/transcript"
	"github.com/pkg/errors"
)

func transcriptSections() ([]schema.Section, error) {
	section, err := config.NewTranscriptSection()
	if err != nil {
		return nil, err
	}
	return glazeSections([]schema.Section{section})
}

func openTranscriptStore(parsed *values.Values) (transcript.Store, error) {
	s, err := config.Decode(parsed, config.TranscriptSlug)
	if err != nil {
		return nil, err
	}
	if s.Transcript.NoTranscript {
		return nil, errors.New("transcripts are disabled (--no-transcript)")
	}
	return config.OpenTranscripts(s.Transcript)
}

type TranscriptsListCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*TranscriptsListCommand)(nil)

type TranscriptsListSettings struct {
	Limit int    `glazed:"limit"`
	Since string `glazed:"since"`
}

func NewTranscriptsListCommand() (cmds.Command, error) {
	sections, err := transcriptSections()
	if err != nil {
		return nil, err
	}
	return &TranscriptsListCommand{CommandDescription: cmds.NewCommandDescription(
		"list",
		cmds.WithShort("List recorded chat sessions, most recent first"),
		cmds.WithFlags(
			fields.New("limit", fields.TypeInteger,
				fields.WithDefault(50),
				fields.WithHelp("Limit number of sessions (0 = no limit)")),
			fields.New("since", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only sessions active within this duration, e.g. 24h")),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *TranscriptsListCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *values.Values, gp middlewares.Processor) error {
	s := &TranscriptsListSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	var sinceMs int64
	if strings.TrimSpace(s.Since) != "" {
		d, err := time.ParseDuration(s.Since)
		if err != nil {
			return errors.Wrap(err, "parse --since")
		}
		sinceMs = time.Now().Add(-d).UnixMilli()
	}

	store, err := openTranscriptStore(parsed)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ListSessions(ctx, s.Limit, sinceMs)
	if err != nil {
		return err
	}
	for _, r := range records {
		row := types.NewRow(
			types.MRP("session_id", r.SessionID),
			types.MRP("user", r.User),
			types.MRP("category", r.Category),
			types.MRP("language", r.Language),
			types.MRP("messages", r.MessageCount),
			types.MRP("created_at", time.UnixMilli(r.CreatedAtMs).Format(time.RFC3339)),
			types.MRP("last_activity", time.UnixMilli(r.LastActivityMs).Format(time.RFC3339)),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type TranscriptsShowCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*TranscriptsShowCommand)(nil)

type TranscriptsShowSettings struct {
	SessionID string `glazed:"session-id"`
	Notices   bool   `glazed:"notices"`
}

func NewTranscriptsShowCommand() (cmds.Command, error) {
	sections, err := transcriptSections()
	if err != nil {
		return nil, err
	}
	return &TranscriptsShowCommand{CommandDescription: cmds.NewCommandDescription(
		"show",
		cmds.WithShort("Print the entries of one recorded session"),
		cmds.WithFlags(
			fields.New("notices", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Include category change notices")),
		),
		cmds.WithArguments(
			fields.New("session-id", fields.TypeString,
				fields.WithHelp("Session to show (see `lawchat transcripts list`)"),
				fields.WithRequired(true)),
		),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *TranscriptsShowCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *values.Values, gp middlewares.Processor) error {
	s := &TranscriptsShowSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	store, err := openTranscriptStore(parsed)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if _, ok, err := store.GetSession(ctx, s.SessionID); err != nil {
		return err
	} else if !ok {
		return errors.Errorf("no transcript for session %q", s.SessionID)
	}

	entries, err := store.Entries(ctx, s.SessionID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Notice && !s.Notices {
			continue
		}
		row := types.NewRow(
			types.MRP("seq", e.Seq),
			types.MRP("origin", e.Origin),
			types.MRP("text", e.Text),
			types.MRP("sources", strings.Join(e.Sources, "; ")),
			types.MRP("error", e.Error),
			types.MRP("category", e.Category),
			types.MRP("language", e.Language),
			types.MRP("at", time.UnixMilli(e.CreatedAtMs).Format(time.RFC3339)),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
