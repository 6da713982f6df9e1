package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// ConversationEventMsg carries a conversation event into the bubbletea loop.
type ConversationEventMsg struct {
	Event conversation.Event
}

// EventForwarder buffers conversation events for the UI loop. The model
// always redraws from the machine's own state, so an event dropped on a full
// buffer only costs a redraw.
type EventForwarder struct {
	ch chan tea.Msg
}

func NewEventForwarder(buffer int) *EventForwarder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &EventForwarder{ch: make(chan tea.Msg, buffer)}
}

// Observer never blocks, so machine methods may be called from Update.
func (f *EventForwarder) Observer() conversation.Observer {
	return func(ev conversation.Event) {
		select {
		case f.ch <- ConversationEventMsg{Event: ev}:
		default:
			log.Debug().Str("type", string(ev.Type)).Msg("ui event buffer full, dropping")
		}
	}
}

// Wait delivers the next forwarded event as a tea.Msg.
func (f *EventForwarder) Wait() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-f.ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (f *EventForwarder) Close() { close(f.ch) }
