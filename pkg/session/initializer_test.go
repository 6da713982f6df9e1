package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls      []string
	sessionErr error
	catsErr    error
	langsErr   error
}

func (f *fakeBackend) CreateSession(context.Context) (*api.SessionResponse, error) {
	f.calls = append(f.calls, "session")
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &api.SessionResponse{SessionID: "s-1"}, nil
}

func (f *fakeBackend) FetchCategories(context.Context) (*api.CategoriesResponse, error) {
	f.calls = append(f.calls, "categories")
	if f.catsErr != nil {
		return nil, f.catsErr
	}
	return &api.CategoriesResponse{Categories: []string{"Family Law", "Tax Law"}}, nil
}

func (f *fakeBackend) FetchLanguages(context.Context) (*api.LanguagesResponse, error) {
	f.calls = append(f.calls, "languages")
	if f.langsErr != nil {
		return nil, f.langsErr
	}
	return &api.LanguagesResponse{Languages: map[string]string{"English": "en", "Hindi": "hi"}}, nil
}

func TestInitializer_RunsStepsInOrderOnce(t *testing.T) {
	backend := &fakeBackend{}
	ini := NewInitializer(backend)

	b, err := ini.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s-1", b.SessionID)
	require.Equal(t, []string{"Family Law", "Tax Law"}, b.Categories)
	require.True(t, b.HasLanguage("Hindi"))
	require.False(t, b.HasLanguage("Klingon"))

	again, err := ini.Run(context.Background())
	require.NoError(t, err)
	require.Same(t, b, again)
	require.Equal(t, []string{"session", "categories", "languages"}, backend.calls)
}

func TestInitializer_FailureAbortsWithUserMessage(t *testing.T) {
	backend := &fakeBackend{catsErr: errors.New("boom")}
	ini := NewInitializer(backend)

	b, err := ini.Run(context.Background())
	require.Nil(t, b)
	var ie *InitError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, "fetch categories", ie.Step)
	require.Equal(t, InitFailedMessage, ie.Message)
	require.Equal(t, []string{"session", "categories"}, backend.calls)

	// no retry
	_, err = ini.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"session", "categories"}, backend.calls)
}

func TestInitializer_SessionFailureSkipsRest(t *testing.T) {
	backend := &fakeBackend{sessionErr: &api.TransportError{Op: "create session", Err: errors.New("refused")}}
	_, err := NewInitializer(backend).Run(context.Background())
	require.Error(t, err)
	require.True(t, api.IsTransport(err))
	require.Equal(t, []string{"session"}, backend.calls)
}

func TestInitializer_AgainstHTTPBackend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"abc"}`))
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"categories":["Tax Law"]}`))
	})
	mux.HandleFunc("/languages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = NewInitializer(client).Run(context.Background())
	var ie *InitError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, "fetch languages", ie.Step)
}
