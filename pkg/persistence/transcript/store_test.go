package transcript

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/session"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "transcript.db"))
	require.NoError(t, err)
	s, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestStore_SessionsAndEntries(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.Error(t, s.UpsertSession(ctx, SessionRecord{}))
			require.NoError(t, s.UpsertSession(ctx, SessionRecord{SessionID: "s1", Category: "Tax Law", Language: "English", CreatedAtMs: 100}))
			require.NoError(t, s.UpsertSession(ctx, SessionRecord{SessionID: "s1", Language: "Hindi", LastActivityMs: 300}))
			require.NoError(t, s.UpsertSession(ctx, SessionRecord{SessionID: "s2", CreatedAtMs: 200}))

			require.NoError(t, s.AppendEntry(ctx, Entry{SessionID: "s1", ID: "b", Seq: 2, Origin: "assistant", Text: "April 15", Sources: []string{"IRC §6072"}, CreatedAtMs: 150}))
			require.NoError(t, s.AppendEntry(ctx, Entry{SessionID: "s1", ID: "a", Seq: 1, Origin: "user", Text: "deadline?", CreatedAtMs: 140}))
			require.Error(t, s.AppendEntry(ctx, Entry{SessionID: "s1"}))

			r, ok, err := s.GetSession(ctx, "s1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "Tax Law", r.Category)
			require.Equal(t, "Hindi", r.Language)
			require.Equal(t, int64(100), r.CreatedAtMs)
			require.Equal(t, int64(300), r.LastActivityMs)
			require.Equal(t, 2, r.MessageCount)

			_, ok, err = s.GetSession(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			list, err := s.ListSessions(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, "s1", list[0].SessionID)
			require.Equal(t, "s2", list[1].SessionID)

			list, err = s.ListSessions(ctx, 10, 250)
			require.NoError(t, err)
			require.Len(t, list, 1)

			list, err = s.ListSessions(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, list, 2)

			list, err = s.ListSessions(ctx, 1, 0)
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Equal(t, "s1", list[0].SessionID)

			entries, err := s.Entries(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			require.Equal(t, "a", entries[0].ID)
			require.Equal(t, "b", entries[1].ID)
			require.Equal(t, []string{"IRC §6072"}, entries[1].Sources)
		})
	}
}

type answerSender struct{}

func (answerSender) SendMessage(_ context.Context, text, _, _, _ string) (*api.ChatResponse, error) {
	return &api.ChatResponse{Answer: "re: " + text, Sources: []string{"src"}}, nil
}

func TestRecorder_WritesFinalEntriesInLogOrder(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := NewRecorder(s, "ada@example.com")
			m := conversation.New(answerSender{}, &session.Bootstrap{
				SessionID:  "sess-1",
				Categories: []string{"Tax Law"},
				Languages:  map[string]string{"English": "en"},
			}, conversation.WithWelcome(), conversation.WithObserver(rec.Observer()))

			m.ApplyRouteCategory("tax-law")
			_, err := m.SendMessage(ctx, "first")
			require.NoError(t, err)
			_, err = m.SendMessage(ctx, "second")
			require.NoError(t, err)

			entries, err := s.Entries(ctx, "sess-1")
			require.NoError(t, err)
			texts := make([]string, 0, len(entries))
			for _, e := range entries {
				texts = append(texts, e.Text)
				require.NotEqual(t, conversation.PlaceholderText, e.Text)
			}
			require.Equal(t, []string{"first", "re: first", "second", "re: second"}, texts)
			require.Equal(t, "Tax Law", entries[1].Category)

			r, ok, err := s.GetSession(ctx, "sess-1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "ada@example.com", r.User)
			require.Equal(t, "Tax Law", r.Category)
			require.Equal(t, 4, r.MessageCount)
		})
	}
}
