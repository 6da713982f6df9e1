package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/go-go-golems/lawchat/pkg/persistence/transcript"
	"github.com/go-go-golems/lawchat/pkg/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// App holds the components a command works with. Close releases all of
// them.
type App struct {
	Settings *Settings
	Tokens   tokenstore.Store
	Client   *api.Client
	Auth     *auth.Manager
}

// NewApp opens the token store, builds the API client and the auth manager.
// It does not validate the stored token; call Auth.Start for that.
func NewApp(ctx context.Context, s *Settings) (*App, error) {
	tokens, err := tokenstore.Open(s.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "open token store")
	}
	client, err := api.NewClient(s.Server.APIURL, tokens, api.WithTimeout(s.Server.Timeout()))
	if err != nil {
		_ = tokens.Close()
		return nil, err
	}
	manager, err := auth.NewManager(ctx, client, tokens)
	if err != nil {
		_ = tokens.Close()
		return nil, err
	}
	log.Debug().
		Str("api_url", client.BaseURL()).
		Str("token_store", s.Credentials.Backend).
		Msg("lawchat app ready")
	return &App{Settings: s, Tokens: tokens, Client: client, Auth: manager}, nil
}

func (a *App) Close() {
	a.Auth.Close()
	if err := a.Tokens.Close(); err != nil {
		log.Warn().Err(err).Msg("could not close token store")
	}
}

// OpenTranscripts returns the configured transcript store, in memory when
// transcripts are disabled.
func OpenTranscripts(s TranscriptSettings) (transcript.Store, error) {
	if s.NoTranscript {
		return transcript.NewInMemoryStore(), nil
	}
	path, err := tokenstore.ExpandHome(s.DB)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("transcript db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create transcript directory")
	}
	dsn, err := transcript.SQLiteDSNForFile(path)
	if err != nil {
		return nil, err
	}
	return transcript.NewSQLiteStore(dsn)
}
