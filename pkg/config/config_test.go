package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/go-go-golems/lawchat/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestSectionsBuild(t *testing.T) {
	sections, err := ChatSections()
	require.NoError(t, err)
	require.Len(t, sections, 4)
}

func TestServerSettingsTimeout(t *testing.T) {
	require.Equal(t, api.DefaultTimeout, ServerSettings{}.Timeout())
	require.Equal(t, 5*time.Second, ServerSettings{TimeoutSeconds: 5}.Timeout())
}

func TestNewApp_FileTokenStartsValidating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	fs, err := tokenstore.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Set(context.Background(), "tok"))
	require.NoError(t, fs.Close())

	app, err := NewApp(context.Background(), &Settings{
		Server:      ServerSettings{APIURL: "localhost:3001/api"},
		Credentials: tokenstore.Settings{Backend: tokenstore.BackendFile, File: path},
	})
	require.NoError(t, err)
	defer app.Close()

	require.Equal(t, "http://localhost:3001/api", app.Client.BaseURL())
	require.Equal(t, auth.StatusValidating, app.Auth.Snapshot().Status)
}

func TestOpenTranscripts(t *testing.T) {
	s, err := OpenTranscripts(TranscriptSettings{NoTranscript: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenTranscripts(TranscriptSettings{DB: filepath.Join(t.TempDir(), "sub", "t.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
