package conversation

import "time"

type EventType string

const (
	EventMessageAppended  EventType = "message_appended"
	EventMessageReplaced  EventType = "message_replaced"
	EventSelectionChanged EventType = "selection_changed"
	EventSendStarted      EventType = "send_started"
	EventSendFinished     EventType = "send_finished"
)

// Event describes one state change of a Machine. Message is set for the
// message events; ReplacedID names the placeholder a MessageReplaced event
// swapped out.
type Event struct {
	Type       EventType
	SessionID  string
	Message    *Message
	ReplacedID string
	Selection  Selection
	Failed     bool
	At         time.Time
}

type Observer func(Event)
