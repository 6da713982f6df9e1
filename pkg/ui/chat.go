package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/gate"
	"github.com/rs/zerolog/log"
)

const helpLine = "enter send · tab/shift+tab category · ctrl+l language · ctrl+y copy answer · /category NAME · /language NAME · esc quit"

// sendDoneMsg is returned by the command that ran a send.
type sendDoneMsg struct {
	sent bool
	err  error
}

// ChatModel is the terminal front of a conversation.Machine.
type ChatModel struct {
	ctx       context.Context
	machine   *conversation.Machine
	forwarder *EventForwarder
	user      string

	input    textinput.Model
	viewport viewport.Model
	spinner  bspinner.Model
	markdown MarkdownRenderer
	copy     func(string) error

	status string
	width  int
	ready  bool
}

type ChatOption func(*ChatModel)

func WithMarkdown(r MarkdownRenderer) ChatOption {
	return func(m *ChatModel) { m.markdown = r }
}

func WithUser(name string) ChatOption {
	return func(m *ChatModel) { m.user = name }
}

// WithClipboard replaces the system clipboard, for tests.
func WithClipboard(fn func(string) error) ChatOption {
	return func(m *ChatModel) { m.copy = fn }
}

func NewChatModel(ctx context.Context, machine *conversation.Machine, forwarder *EventForwarder, opts ...ChatOption) ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask a legal question…"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	sp := bspinner.New()
	sp.Spinner = bspinner.Line
	sp.Style = subHeaderStyle

	vp := viewport.New(80, 20)

	m := ChatModel{
		ctx:       ctx,
		machine:   machine,
		forwarder: forwarder,
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		copy:      clipboard.WriteAll,
		width:     80,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if machine.Selection().Category == "" {
		m.status = "Select a legal category with tab or /category."
	}
	m.refresh()
	return m
}

func (m ChatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.forwarder != nil {
		cmds = append(cmds, m.forwarder.Wait())
	}
	return tea.Batch(cmds...)
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		// header, status, help and input take five lines
		m.viewport.Height = max(msg.Height-5, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case ConversationEventMsg:
		m.refresh()
		if m.forwarder != nil {
			cmds = append(cmds, m.forwarder.Wait())
		}
		return m, tea.Batch(cmds...)

	case sendDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.input.Focus()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case bspinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.machine.InFlight() {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		m.cycleCategory(1)
		return m, nil
	case "shift+tab":
		m.cycleCategory(-1)
		return m, nil
	case "ctrl+l":
		m.cycleLanguage()
		return m, nil
	case "ctrl+y":
		m.copyLastAnswer()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		return m.submit()
	}

	// typing is locked while an answer is pending
	if m.machine.InFlight() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if name, arg, ok := parseCommand(text); ok {
		m.input.Reset()
		switch name {
		case "category", "c":
			if err := m.machine.SelectCategory(arg); err != nil {
				m.status = fmt.Sprintf("Unknown category %q.", arg)
			} else {
				m.status = ""
			}
		case "language", "lang", "l":
			if err := m.machine.SelectLanguage(arg); err != nil {
				m.status = fmt.Sprintf("Unknown language %q.", arg)
			} else {
				m.status = ""
			}
		case "copy":
			m.copyLastAnswer()
		case "quit", "q":
			return m, tea.Quit
		default:
			m.status = fmt.Sprintf("Unknown command /%s.", name)
		}
		m.refresh()
		return m, nil
	}

	sel := m.machine.Selection()
	switch {
	case m.machine.InFlight():
		m.status = "Please wait for the current answer."
		return m, nil
	case sel.Category == "":
		m.status = "Select a legal category first."
		return m, nil
	case !m.machine.CanSend():
		m.status = "The session is not ready."
		return m, nil
	}

	m.input.Reset()
	m.input.Blur()
	m.status = ""
	machine, ctx := m.machine, m.ctx
	return m, func() tea.Msg {
		sent, err := machine.SendMessage(ctx, text)
		return sendDoneMsg{sent: sent, err: err}
	}
}

func (m *ChatModel) cycleCategory(step int) {
	cats := m.machine.Categories()
	if len(cats) == 0 {
		return
	}
	current := m.machine.Selection().Category
	idx := -1
	for i, c := range cats {
		if c == current {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && step < 0:
		idx = len(cats) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + step + len(cats)) % len(cats)
	}
	if err := m.machine.SelectCategory(cats[idx]); err != nil {
		log.Warn().Err(err).Msg("could not select category")
	}
	m.status = ""
	m.refresh()
}

func (m *ChatModel) cycleLanguage() {
	langs := sortedLanguages(m.machine.Languages())
	if len(langs) == 0 {
		return
	}
	current := m.machine.Selection().Language
	next := langs[0]
	for i, l := range langs {
		if l == current {
			next = langs[(i+1)%len(langs)]
			break
		}
	}
	if err := m.machine.SelectLanguage(next); err != nil {
		log.Warn().Err(err).Msg("could not select language")
	}
	m.refresh()
}

func (m *ChatModel) copyLastAnswer() {
	answer, ok := m.machine.Log().LastAnswer()
	if !ok {
		m.status = "Nothing to copy yet."
		return
	}
	if err := m.copy(answer.Text); err != nil {
		log.Warn().Err(err).Msg("clipboard write failed")
		m.status = "Could not copy to clipboard."
		return
	}
	m.status = "Copied the last answer."
}

func (m *ChatModel) refresh() {
	if m.machine.InFlight() {
		m.input.Blur()
	}
	content := RenderLog(m.machine.Log(), m.width, m.markdown, m.spinner.View())
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m ChatModel) header() string {
	sel := m.machine.Selection()
	route := gate.DefaultLanding
	category := "no category"
	if sel.Category != "" {
		route = gate.CategoryPath(sel.Category)
		category = sel.Category
	}
	h := headerStyle.Render("LawGPT") + "  " + subHeaderStyle.Render(category) + "  " + statusStyle.Render(sel.Language+" · "+route)
	if m.user != "" {
		h += "  " + statusStyle.Render(m.user)
	}
	return h
}

func (m ChatModel) View() string {
	status := m.status
	if m.machine.InFlight() {
		status = m.spinner.View() + " " + conversation.PlaceholderText
	}
	return strings.Join([]string{
		m.header(),
		m.viewport.View(),
		statusStyle.Render(status),
		m.input.View(),
		statusStyle.Render(helpLine),
	}, "\n")
}

// parseCommand splits "/name rest of line".
func parseCommand(s string) (string, string, bool) {
	if !strings.HasPrefix(s, "/") {
		return "", "", false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(s, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), name != ""
}

func sortedLanguages(langs map[string]string) []string {
	ret := make([]string, 0, len(langs))
	for k := range langs {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
