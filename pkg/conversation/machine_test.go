package conversation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/session"
	"github.com/go-go-golems/lawchat/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

type sentCall struct {
	Text, Category, Language, SessionID string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	reply func(call sentCall) (*api.ChatResponse, error)
}

func (f *fakeSender) SendMessage(_ context.Context, text, category, language, sessionID string) (*api.ChatResponse, error) {
	call := sentCall{text, category, language, sessionID}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.reply == nil {
		return &api.ChatResponse{Answer: "answer to " + text}, nil
	}
	return f.reply(call)
}

func testBootstrap() *session.Bootstrap {
	return &session.Bootstrap{
		SessionID:  "s-1",
		Categories: []string{"Family Law", "Tax Law"},
		Languages:  map[string]string{"English": "en", "Hindi": "hi"},
	}
}

func TestMachine_HappyPath(t *testing.T) {
	sender := &fakeSender{reply: func(sentCall) (*api.ChatResponse, error) {
		return &api.ChatResponse{Answer: "April 15", Sources: []string{"IRC §6072"}}, nil
	}}
	m := New(sender, testBootstrap())
	require.NoError(t, m.SelectCategory("Tax Law"))

	sent, err := m.SendMessage(context.Background(), "What is the filing deadline?")
	require.NoError(t, err)
	require.True(t, sent)

	want := NewLog(
		Message{Origin: OriginUser, Text: "What is the filing deadline?"},
		Message{Origin: OriginAssistant, Text: "April 15", Sources: []string{"IRC §6072"}},
	)
	got := m.Log()
	// ids are generated; compare the rest
	stripped := make([]Message, 0, got.Len())
	for _, msg := range got.Messages() {
		msg.ID = ""
		stripped = append(stripped, msg)
	}
	require.True(t, want.Equal(NewLog(stripped...)), "got %+v", got.Messages())
	require.Empty(t, got.Pending())
	require.Equal(t, []sentCall{{"What is the filing deadline?", "Tax Law", "English", "s-1"}}, sender.calls)
	require.False(t, m.InFlight())
}

func TestMachine_OneFinalAnswerPerQuestionInOrder(t *testing.T) {
	sender := &fakeSender{}
	m := New(sender, testBootstrap())
	require.NoError(t, m.SelectCategory("Family Law"))

	questions := []string{"one", "two", "three"}
	for _, q := range questions {
		sent, err := m.SendMessage(context.Background(), q)
		require.NoError(t, err)
		require.True(t, sent)
		require.Empty(t, m.Log().Pending())
	}

	msgs := m.Log().Messages()
	require.Len(t, msgs, 2*len(questions))
	for i, q := range questions {
		require.Equal(t, OriginUser, msgs[2*i].Origin)
		require.Equal(t, q, msgs[2*i].Text)
		require.Equal(t, OriginAssistant, msgs[2*i+1].Origin)
		require.Equal(t, "answer to "+q, msgs[2*i+1].Text)
		require.True(t, msgs[2*i+1].Final())
	}
}

func TestMachine_GatedWithoutCategory(t *testing.T) {
	sender := &fakeSender{}
	m := New(sender, testBootstrap())
	before := m.Log()

	sent, err := m.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.False(t, sent)
	require.True(t, before.Equal(m.Log()))
	require.Empty(t, sender.calls)
	require.False(t, m.CanSend())
}

func TestMachine_GatedWithoutSessionOrText(t *testing.T) {
	sender := &fakeSender{}
	b := testBootstrap()
	b.SessionID = ""
	m := New(sender, b)
	require.NoError(t, m.SelectCategory("Tax Law"))

	sent, err := m.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.False(t, sent)

	m = New(sender, testBootstrap())
	require.NoError(t, m.SelectCategory("Tax Law"))
	sent, err = m.SendMessage(context.Background(), "   ")
	require.NoError(t, err)
	require.False(t, sent)
	require.Empty(t, sender.calls)
	require.Equal(t, 0, m.Log().Len())
}

func TestMachine_BackendFailureBecomesErrorEntry(t *testing.T) {
	sender := &fakeSender{reply: func(sentCall) (*api.ChatResponse, error) {
		return nil, &api.StatusError{Op: "send message", StatusCode: 500}
	}}
	m := New(sender, testBootstrap())
	require.NoError(t, m.SelectCategory("Tax Law"))

	sent, err := m.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, sent)
	require.False(t, m.InFlight())

	var errs []Message
	for _, msg := range m.Log().Messages() {
		if msg.Origin == OriginAssistant {
			errs = append(errs, msg)
		}
	}
	require.Len(t, errs, 1)
	require.True(t, errs[0].Error)
	require.Equal(t, SendErrorText, errs[0].Text)
	require.Empty(t, m.Log().Pending())
}

func TestMachine_PanickingSenderIsContained(t *testing.T) {
	sender := &fakeSender{reply: func(sentCall) (*api.ChatResponse, error) {
		panic("kaboom")
	}}
	m := New(sender, testBootstrap())
	require.NoError(t, m.SelectCategory("Tax Law"))

	sent, err := m.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, sent)
	require.False(t, m.InFlight())
	require.True(t, m.Log().At(1).Error)
}

func TestMachine_PanickingObserverDoesNotStrandPlaceholder(t *testing.T) {
	panicOn := EventSendStarted
	m := New(&fakeSender{}, testBootstrap(), WithObserver(func(ev Event) {
		if ev.Type == panicOn {
			panic("observer broke")
		}
	}))
	require.NoError(t, m.SelectCategory("Tax Law"))

	sent, err := m.SendMessage(context.Background(), "first")
	require.NoError(t, err)
	require.True(t, sent)
	require.False(t, m.InFlight())
	require.Empty(t, m.Log().Pending())
	require.Equal(t, 2, m.Log().Len())
	require.Equal(t, "answer to first", m.Log().At(1).Text)

	panicOn = EventMessageReplaced
	sent, err = m.SendMessage(context.Background(), "second")
	require.NoError(t, err)
	require.True(t, sent)
	require.Empty(t, m.Log().Pending())
	require.Equal(t, 4, m.Log().Len())
}

func TestMachine_SettleTurnsStrandedPlaceholderIntoError(t *testing.T) {
	m := New(&fakeSender{}, testBootstrap())
	placeholder := Message{ID: "pending-9", Origin: OriginAssistant, Text: PlaceholderText, Pending: true}
	m.mu.Lock()
	m.log = m.log.Append(Message{ID: "u", Origin: OriginUser, Text: "q"}).Append(placeholder)
	m.inFlight = true
	m.mu.Unlock()

	m.settle(placeholder.ID)

	require.False(t, m.InFlight())
	require.Empty(t, m.Log().Pending())
	require.Equal(t, 2, m.Log().Len())
	require.True(t, m.Log().At(1).Error)
	require.Equal(t, SendErrorText, m.Log().At(1).Text)

	// a settled entry is left alone
	m.settle(placeholder.ID)
	require.Equal(t, 2, m.Log().Len())
}

func TestMachine_SecondSendWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	sender := &fakeSender{reply: func(call sentCall) (*api.ChatResponse, error) {
		close(started)
		<-release
		return &api.ChatResponse{Answer: "done"}, nil
	}}
	m := New(sender, testBootstrap())
	require.NoError(t, m.SelectCategory("Tax Law"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.SendMessage(context.Background(), "first")
	}()
	<-started

	require.True(t, m.InFlight())
	require.False(t, m.CanSend())
	pending := m.Log().Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "pending-1", pending[0].ID)
	require.Equal(t, PlaceholderText, pending[0].Text)

	sent, err := m.SendMessage(context.Background(), "second")
	require.ErrorIs(t, err, ErrSendInFlight)
	require.False(t, sent)

	// switching category mid-flight does not affect the captured one
	require.NoError(t, m.SelectCategory("family law"))

	close(release)
	<-done

	require.Len(t, sender.calls, 1)
	require.Equal(t, "Tax Law", sender.calls[0].Category)
	require.Equal(t, "Family Law", m.Selection().Category)
	require.Equal(t, 2, m.Log().Len())
	require.Equal(t, "done", m.Log().At(1).Text)
	require.False(t, m.InFlight())
}

func TestMachine_ReplacesPlaceholderInPlace(t *testing.T) {
	var m *Machine
	sender := &fakeSender{reply: func(sentCall) (*api.ChatResponse, error) {
		// a category switch lands after the placeholder
		require.NoError(t, m.SelectCategory("Family Law"))
		return &api.ChatResponse{Answer: "ok"}, nil
	}}
	m = New(sender, testBootstrap(), WithCategoryNotices())
	require.NoError(t, m.SelectCategory("Tax Law"))

	_, err := m.SendMessage(context.Background(), "q")
	require.NoError(t, err)

	msgs := m.Log().Messages()
	require.Len(t, msgs, 4)
	require.True(t, msgs[0].Notice)
	require.Equal(t, "q", msgs[1].Text)
	require.Equal(t, "ok", msgs[2].Text)
	require.True(t, msgs[3].Notice)
	require.Equal(t, `You are now in the "Family Law" category. Please ask a relevant question.`, msgs[3].Text)
}

func TestMachine_UnknownCategoryIsRejected(t *testing.T) {
	var events []Event
	m := New(&fakeSender{}, testBootstrap(), WithObserver(func(e Event) { events = append(events, e) }))
	require.NoError(t, m.SelectCategory("Tax Law"))
	events = nil

	err := m.SelectCategory("Maritime Law")
	require.ErrorIs(t, err, ErrUnknownCategory)
	require.Equal(t, "Tax Law", m.Selection().Category)
	require.Empty(t, events)

	res := m.ApplyRouteCategory("maritime-law")
	require.Equal(t, "/", res.Redirect)
	require.Equal(t, "Tax Law", m.Selection().Category)
}

func TestMachine_ApplyRouteCategory(t *testing.T) {
	m := New(&fakeSender{}, testBootstrap(), WithCategoryNotices())
	res := m.ApplyRouteCategory("family-law")
	require.Empty(t, res.Redirect)
	require.Equal(t, "Family Law", res.Category)
	require.Equal(t, "Family Law", m.Selection().Category)
	require.Equal(t, 0, m.Log().Len())
}

func TestMachine_SelectLanguageIdempotent(t *testing.T) {
	var events []Event
	m := New(&fakeSender{}, testBootstrap(), WithWelcome(), WithObserver(func(e Event) { events = append(events, e) }))
	require.Equal(t, DefaultLanguage, m.Selection().Language)

	require.NoError(t, m.SelectLanguage("Hindi"))
	logAfterFirst, selAfterFirst := m.Log(), m.Selection()
	require.NoError(t, m.SelectLanguage("Hindi"))

	require.True(t, logAfterFirst.Equal(m.Log()))
	require.Equal(t, selAfterFirst, m.Selection())
	require.Len(t, events, 1)
	require.Equal(t, 1, m.Log().Len())
	require.Equal(t, WelcomeText, m.Log().At(0).Text)

	require.ErrorIs(t, m.SelectLanguage("Klingon"), ErrUnknownLanguage)
	require.Equal(t, "Hindi", m.Selection().Language)
}

func TestMachine_ObserverSeesLifecycle(t *testing.T) {
	var types []EventType
	var replaced string
	m := New(&fakeSender{}, testBootstrap(), WithObserver(func(e Event) {
		types = append(types, e.Type)
		if e.Type == EventMessageReplaced {
			replaced = e.ReplacedID
		}
	}))
	require.NoError(t, m.SelectCategory("Tax Law"))
	_, err := m.SendMessage(context.Background(), "q")
	require.NoError(t, err)

	require.Equal(t, []EventType{
		EventSelectionChanged,
		EventMessageAppended,
		EventMessageAppended,
		EventSendStarted,
		EventMessageReplaced,
		EventSendFinished,
	}, types)
	require.Equal(t, "pending-1", replaced)
}

func TestMachine_UnauthorizedSendClearsStoredToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore("expired")
	client, err := api.NewClient(srv.URL+"/api", store)
	require.NoError(t, err)

	m := New(client, testBootstrap())
	require.NoError(t, m.SelectCategory("Tax Law"))
	sent, err := m.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, sent)

	_, ok, err := store.Get(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, m.Log().At(1).Error)
}

func TestLog_ReplaceByIDIsImmutable(t *testing.T) {
	a := NewLog(Message{ID: "1", Text: "a"}, Message{ID: "2", Text: "b", Pending: true})
	b, ok := a.ReplaceByID("2", Message{ID: "3", Text: "c"})
	require.True(t, ok)
	require.Equal(t, "b", a.At(1).Text)
	require.Equal(t, "c", b.At(1).Text)
	require.False(t, a.Equal(b))

	same, ok := a.ReplaceByID("nope", Message{})
	require.False(t, ok)
	require.True(t, a.Equal(same))

	last, ok := b.LastAnswer()
	require.False(t, ok, "origin is unset so nothing counts as an answer: %+v", last)
}

func TestNormalizeCategory(t *testing.T) {
	require.Equal(t, "tax law", NormalizeCategory("Tax Law"))
	require.Equal(t, "tax law", NormalizeCategory("tax-law"))
	require.Equal(t, "tax law", NormalizeCategory(" TAX__law "))
	require.Equal(t, "tax-law", CategorySlug("Tax Law"))
}
