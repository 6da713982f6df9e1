// Package config declares the glazed sections shared by the lawchat commands
// and builds the long-lived components from their decoded values.
package config

import (
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/eventbus"
	"github.com/go-go-golems/lawchat/pkg/tokenstore"
	"github.com/pkg/errors"
)

const (
	ServerSlug     = "server"
	TranscriptSlug = "transcript"

	DefaultAPIURL = "http://localhost:3001/api"
)

type ServerSettings struct {
	APIURL         string `glazed:"api-url"`
	TimeoutSeconds int    `glazed:"timeout-seconds"`
}

func (s ServerSettings) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return api.DefaultTimeout
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type TranscriptSettings struct {
	DB           string `glazed:"transcript-db"`
	NoTranscript bool   `glazed:"no-transcript"`
}

func NewServerSection() (schema.Section, error) {
	return schema.NewSection(
		ServerSlug,
		"Legal QA backend",
		schema.WithFields(
			fields.New("api-url", fields.TypeString,
				fields.WithDefault(DefaultAPIURL),
				fields.WithHelp("Base URL of the backend API")),
			fields.New("timeout-seconds", fields.TypeInteger,
				fields.WithDefault(30),
				fields.WithHelp("Per-request timeout")),
		),
	)
}

func NewTranscriptSection() (schema.Section, error) {
	return schema.NewSection(
		TranscriptSlug,
		"Local conversation transcripts",
		schema.WithFields(
			fields.New("transcript-db", fields.TypeString,
				fields.WithDefault("~/.lawchat/lawchat.db"),
				fields.WithHelp("SQLite database transcripts are written to")),
			fields.New("no-transcript", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Keep transcripts in memory only")),
		),
	)
}

// ClientSections are the sections every command that talks to the backend
// carries.
func ClientSections() ([]schema.Section, error) {
	server, err := NewServerSection()
	if err != nil {
		return nil, err
	}
	creds, err := tokenstore.NewSection()
	if err != nil {
		return nil, err
	}
	return []schema.Section{server, creds}, nil
}

// ChatSections adds transcript and event transport settings.
func ChatSections() ([]schema.Section, error) {
	sections, err := ClientSections()
	if err != nil {
		return nil, err
	}
	transcript, err := NewTranscriptSection()
	if err != nil {
		return nil, err
	}
	redis, err := eventbus.NewSection()
	if err != nil {
		return nil, err
	}
	return append(sections, transcript, redis), nil
}

// Settings is the decoded form of the lawchat sections. Sections not named
// in Decode keep their zero value.
type Settings struct {
	Server      ServerSettings
	Credentials tokenstore.Settings
	Transcript  TranscriptSettings
	Events      eventbus.Settings
}

// Decode reads the named sections out of parsed.
func Decode(parsed *values.Values, slugs ...string) (*Settings, error) {
	s := &Settings{}
	targets := map[string]any{
		ServerSlug:             &s.Server,
		tokenstore.SectionSlug: &s.Credentials,
		TranscriptSlug:         &s.Transcript,
		eventbus.SectionSlug:   &s.Events,
	}
	for _, slug := range slugs {
		dst, ok := targets[slug]
		if !ok {
			return nil, errors.Errorf("unknown settings section %q", slug)
		}
		if err := parsed.DecodeSectionInto(slug, dst); err != nil {
			return nil, errors.Wrapf(err, "decode %s settings", slug)
		}
	}
	if s.Server.APIURL == "" {
		s.Server.APIURL = DefaultAPIURL
	}
	return s, nil
}

var (
	ClientSlugs = []string{ServerSlug, tokenstore.SectionSlug}
	ChatSlugs   = []string{ServerSlug, tokenstore.SectionSlug, TranscriptSlug, eventbus.SectionSlug}
)
