package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/session"
	"github.com/stretchr/testify/require"
)

type echoSender struct{}

func (echoSender) SendMessage(_ context.Context, text, category, _, _ string) (*api.ChatResponse, error) {
	return &api.ChatResponse{Answer: category + ": " + text, Sources: []string{"IRC §6072"}}, nil
}

func newTestModel(t *testing.T, opts ...ChatOption) (ChatModel, *conversation.Machine, *[]string) {
	t.Helper()
	fwd := NewEventForwarder(16)
	m := conversation.New(echoSender{}, &session.Bootstrap{
		SessionID:  "s-1",
		Categories: []string{"Family Law", "Tax Law"},
		Languages:  map[string]string{"English": "en", "Hindi": "hi"},
	}, conversation.WithCategoryNotices(), conversation.WithObserver(fwd.Observer()))

	var copied []string
	opts = append([]ChatOption{WithClipboard(func(s string) error {
		copied = append(copied, s)
		return nil
	})}, opts...)
	return NewChatModel(context.Background(), m, fwd, opts...), m, &copied
}

func typeText(model ChatModel, text string) ChatModel {
	next, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(ChatModel)
}

func press(model ChatModel, k tea.KeyType) (ChatModel, tea.Cmd) {
	next, cmd := model.Update(tea.KeyMsg{Type: k})
	return next.(ChatModel), cmd
}

func TestChatModel_EnterWithoutCategoryIsGated(t *testing.T) {
	model, m, _ := newTestModel(t)
	model = typeText(model, "hello")
	model, cmd := press(model, tea.KeyEnter)
	require.Nil(t, cmd)
	require.Equal(t, 0, m.Log().Len())
	require.Contains(t, model.View(), "Select a legal category first.")
}

func TestChatModel_SendsAndRendersAnswer(t *testing.T) {
	model, m, copied := newTestModel(t)
	model, _ = press(model, tea.KeyTab)
	require.Equal(t, "Family Law", m.Selection().Category)
	require.Contains(t, model.View(), "/category/family-law")

	model = typeText(model, "custody?")
	model, cmd := press(model, tea.KeyEnter)
	require.NotNil(t, cmd)
	require.Empty(t, model.input.Value())

	done := cmd()
	require.Equal(t, sendDoneMsg{sent: true}, done)
	next, _ := model.Update(done)
	model = next.(ChatModel)

	view := model.View()
	require.Contains(t, view, "custody?")
	require.Contains(t, view, "Family Law: custody?")
	require.Contains(t, view, "IRC §6072")
	require.False(t, m.InFlight())

	model, _ = press(model, tea.KeyCtrlY)
	require.Equal(t, []string{"Family Law: custody?"}, *copied)
	require.Contains(t, model.View(), "Copied the last answer.")
}

func TestChatModel_SlashCommands(t *testing.T) {
	model, m, _ := newTestModel(t)

	model = typeText(model, "/category tax-law")
	model, _ = press(model, tea.KeyEnter)
	require.Equal(t, "Tax Law", m.Selection().Category)
	require.Contains(t, model.View(), `You are now in the "Tax Law" category.`)

	model = typeText(model, "/language Hindi")
	model, _ = press(model, tea.KeyEnter)
	require.Equal(t, "Hindi", m.Selection().Language)

	model = typeText(model, "/category Space Law")
	model, _ = press(model, tea.KeyEnter)
	require.Equal(t, "Tax Law", m.Selection().Category)
	require.Contains(t, model.View(), `Unknown category "Space Law".`)

	model, _ = press(model, tea.KeyCtrlL)
	require.Equal(t, "English", m.Selection().Language)
}

func TestChatModel_ForwardedEventsKeepListening(t *testing.T) {
	model, m, _ := newTestModel(t)
	require.NoError(t, m.SelectCategory("Tax Law"))

	msg := model.forwarder.Wait()()
	ev, ok := msg.(ConversationEventMsg)
	require.True(t, ok)
	require.Equal(t, conversation.EventSelectionChanged, ev.Event.Type)

	_, cmd := model.Update(msg)
	require.NotNil(t, cmd)
}

func TestParseCommand(t *testing.T) {
	name, arg, ok := parseCommand("/Category  Tax Law ")
	require.True(t, ok)
	require.Equal(t, "category", name)
	require.Equal(t, "Tax Law", arg)

	_, _, ok = parseCommand("what is /category?")
	require.False(t, ok)
	_, _, ok = parseCommand("/")
	require.False(t, ok)
}

func TestRenderLog(t *testing.T) {
	l := conversation.NewLog(
		conversation.Message{ID: "1", Origin: conversation.OriginUser, Text: "q"},
		conversation.Message{ID: "2", Origin: conversation.OriginAssistant, Text: conversation.PlaceholderText, Pending: true},
	)
	out := RenderLog(l, 80, nil, "|")
	require.Contains(t, out, "q")
	require.Contains(t, out, "| "+conversation.PlaceholderText)

	l, _ = l.ReplaceByID("2", conversation.Message{ID: "3", Origin: conversation.OriginAssistant, Text: "**bold**"})
	out = RenderLog(l, 80, func(md string, _ int) string { return strings.ToUpper(md) }, "|")
	require.Contains(t, out, "**BOLD**")
	require.NotContains(t, out, conversation.PlaceholderText)
}
