// Package conversation holds the message log and the category/language
// selection of one chat activation, and drives the send/receive lifecycle of
// each question.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultLanguage = "English"

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownLanguage = errors.New("unknown language")
	ErrSendInFlight    = errors.New("a message is already being answered")
)

// Sender is the backend call a send ends in. *api.Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, text, category, language, sessionID string) (*api.ChatResponse, error)
}

type Selection struct {
	Category string
	Language string
}

// RouteResult is what ApplyRouteCategory decided. A non-empty Redirect means
// the slug did not name a known category and the caller should navigate
// there instead.
type RouteResult struct {
	Category string
	Redirect string
}

type Option func(*Machine)

// WithWelcome seeds the log with the assistant greeting.
func WithWelcome() Option {
	return func(m *Machine) { m.welcome = true }
}

// WithCategoryNotices makes SelectCategory append an assistant notice naming
// the new category.
func WithCategoryNotices() Option {
	return func(m *Machine) { m.notices = true }
}

func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithClock is used by tests to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

type Machine struct {
	sender     Sender
	sessionID  string
	categories categoryIndex
	languages  map[string]string

	welcome   bool
	notices   bool
	observers []Observer
	now       func() time.Time

	mu          sync.Mutex
	log         Log
	selection   Selection
	inFlight    bool
	nextPending int

	// emitMu keeps observers seeing events in the order the state changed.
	emitMu sync.Mutex
}

// New builds a machine for a bootstrapped activation. A nil bootstrap gives a
// machine that can never send.
func New(sender Sender, b *session.Bootstrap, opts ...Option) *Machine {
	m := &Machine{
		sender:    sender,
		languages: map[string]string{},
		now:       time.Now,
		selection: Selection{Language: DefaultLanguage},
	}
	if b != nil {
		m.sessionID = b.SessionID
		m.categories = newCategoryIndex(b.Categories)
		for k, v := range b.Languages {
			m.languages[k] = v
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.welcome {
		m.log = m.log.Append(Message{
			ID:        uuid.NewString(),
			Origin:    OriginAssistant,
			Text:      WelcomeText,
			CreatedAt: m.now(),
		})
	}
	return m
}

func (m *Machine) Log() Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log
}

func (m *Machine) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection
}

func (m *Machine) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// CanSend reports whether a question could be sent right now.
func (m *Machine) CanSend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canSendLocked()
}

func (m *Machine) canSendLocked() bool {
	return m.sessionID != "" && m.selection.Category != "" && !m.inFlight
}

func (m *Machine) SessionID() string { return m.sessionID }

func (m *Machine) Categories() []string {
	return append([]string(nil), m.categories.ordered...)
}

func (m *Machine) Languages() map[string]string {
	ret := make(map[string]string, len(m.languages))
	for k, v := range m.languages {
		ret[k] = v
	}
	return ret
}

// SelectCategory switches to a known category. Unknown names leave the
// selection untouched and return ErrUnknownCategory.
func (m *Machine) SelectCategory(name string) error {
	canonical, ok := m.categories.resolve(name)
	if !ok {
		log.Debug().Str("category", name).Msg("ignoring unknown category")
		return errors.Wrapf(ErrUnknownCategory, "%q", name)
	}

	m.mu.Lock()
	m.selection.Category = canonical
	events := []Event{m.eventLocked(EventSelectionChanged, nil, "")}
	if m.notices {
		notice := Message{
			ID:        uuid.NewString(),
			Origin:    OriginAssistant,
			Text:      fmt.Sprintf("You are now in the %q category. Please ask a relevant question.", canonical),
			Notice:    true,
			CreatedAt: m.now(),
		}
		m.log = m.log.Append(notice)
		events = append(events, m.eventLocked(EventMessageAppended, &notice, ""))
	}
	m.emitAndUnlock(events...)
	return nil
}

// ApplyRouteCategory selects the category named by a route slug without
// posting a notice. An unknown slug keeps the current category and asks the
// caller to go back to the landing page.
func (m *Machine) ApplyRouteCategory(slug string) RouteResult {
	canonical, ok := m.categories.resolve(slug)
	if !ok {
		log.Debug().Str("slug", slug).Msg("route names no known category")
		return RouteResult{Category: m.Selection().Category, Redirect: "/"}
	}

	m.mu.Lock()
	if m.selection.Category == canonical {
		m.mu.Unlock()
		return RouteResult{Category: canonical}
	}
	m.selection.Category = canonical
	m.emitAndUnlock(m.eventLocked(EventSelectionChanged, nil, ""))
	return RouteResult{Category: canonical}
}

func (m *Machine) SelectLanguage(name string) error {
	if _, ok := m.languages[name]; !ok {
		return errors.Wrapf(ErrUnknownLanguage, "%q", name)
	}
	m.mu.Lock()
	if m.selection.Language == name {
		m.mu.Unlock()
		return nil
	}
	m.selection.Language = name
	m.emitAndUnlock(m.eventLocked(EventSelectionChanged, nil, ""))
	return nil
}

// SendMessage runs one question through the backend. It returns false when
// the send was gated off: blank text, no session, no category, or another
// send in flight (the latter also returns ErrSendInFlight). Backend failures
// end up in the log as an error entry and are not returned.
func (m *Machine) SendMessage(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return false, ErrSendInFlight
	}
	if !m.canSendLocked() {
		m.mu.Unlock()
		return false, nil
	}

	now := m.now()
	user := Message{ID: uuid.NewString(), Origin: OriginUser, Text: text, CreatedAt: now}
	m.nextPending++
	placeholder := Message{
		ID:        fmt.Sprintf("pending-%d", m.nextPending),
		Origin:    OriginAssistant,
		Text:      PlaceholderText,
		Pending:   true,
		CreatedAt: now,
	}
	m.log = m.log.Append(user).Append(placeholder)
	m.inFlight = true
	defer m.settle(placeholder.ID)
	captured := m.selection
	m.emitAndUnlock(
		m.eventLocked(EventMessageAppended, &user, ""),
		m.eventLocked(EventMessageAppended, &placeholder, ""),
		m.eventLocked(EventSendStarted, nil, ""),
	)

	final := m.ask(ctx, text, captured)

	m.mu.Lock()
	next, ok := m.log.ReplaceByID(placeholder.ID, final)
	if !ok {
		log.Warn().Str("id", placeholder.ID).Msg("placeholder vanished before the answer arrived")
		next = m.log.Append(final)
	}
	m.log = next
	m.inFlight = false
	finished := m.eventLocked(EventSendFinished, nil, "")
	finished.Failed = final.Error
	m.emitAndUnlock(m.eventLocked(EventMessageReplaced, &final, placeholder.ID), finished)
	return true, nil
}

// ask calls the backend and turns whatever comes back, panics included, into
// the finalized assistant message.
func (m *Machine) ask(ctx context.Context, text string, sel Selection) (final Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("sender panicked")
			final = m.errorMessage()
		}
	}()

	if m.sender == nil {
		return m.errorMessage()
	}
	res, err := m.sender.SendMessage(ctx, text, sel.Category, sel.Language, m.sessionID)
	if err != nil {
		log.Warn().Err(err).Str("category", sel.Category).Msg("send failed")
		return m.errorMessage()
	}
	if res == nil {
		log.Warn().Msg("backend returned an empty chat response")
		return m.errorMessage()
	}
	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	return Message{
		ID:        uuid.NewString(),
		Origin:    OriginAssistant,
		Text:      res.Answer,
		Sources:   append([]string{}, sources...),
		CreatedAt: m.now(),
	}
}

// settle drops the in-flight flag and turns a placeholder that is still
// pending into an error entry, so an aborted send never leaves one behind.
func (m *Machine) settle(placeholderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	idx := m.log.IndexOf(placeholderID)
	if idx < 0 || !m.log.At(idx).Pending {
		return
	}
	log.Warn().Str("id", placeholderID).Msg("send aborted, settling placeholder as error")
	m.log, _ = m.log.ReplaceByID(placeholderID, m.errorMessage())
}

func (m *Machine) errorMessage() Message {
	return Message{
		ID:        uuid.NewString(),
		Origin:    OriginAssistant,
		Text:      SendErrorText,
		Error:     true,
		Sources:   []string{},
		CreatedAt: m.now(),
	}
}

func (m *Machine) eventLocked(t EventType, msg *Message, replaced string) Event {
	ev := Event{
		Type:       t,
		SessionID:  m.sessionID,
		ReplacedID: replaced,
		Selection:  m.selection,
		At:         m.now(),
	}
	if msg != nil {
		cp := *msg
		ev.Message = &cp
	}
	return ev
}

// emitAndUnlock releases m.mu and delivers events to observers. Must be
// called with m.mu held.
func (m *Machine) emitAndUnlock(events ...Event) {
	m.emitMu.Lock()
	m.mu.Unlock()
	defer m.emitMu.Unlock()
	for _, ev := range events {
		for _, o := range m.observers {
			notify(o, ev)
		}
	}
}

// notify isolates one observer; a panicking observer is logged and skipped.
func notify(o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", string(ev.Type)).Msg("conversation observer panicked")
		}
	}()
	o(ev)
}
