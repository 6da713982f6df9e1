package conversation

import (
	"reflect"
	"time"
)

type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

const (
	WelcomeText     = "Hello! I'm LawGPT, your legal assistant. Select a legal category and ask me a question."
	PlaceholderText = "Generating response..."
	SendErrorText   = "Error: Failed to send your message. Please try again."
)

// Message is one entry of the conversation log. User messages are final when
// created. Assistant placeholders are Pending until replaced.
type Message struct {
	ID        string
	Origin    Origin
	Text      string
	Sources   []string
	Pending   bool
	Error     bool
	Notice    bool
	CreatedAt time.Time
}

func (m Message) Final() bool { return !m.Pending }

// Log is an immutable ordered sequence of messages. Every operation returns a
// new Log and leaves the receiver untouched.
type Log struct {
	msgs []Message
}

func NewLog(msgs ...Message) Log {
	return Log{msgs: cloneMessages(msgs)}
}

func (l Log) Len() int { return len(l.msgs) }

func (l Log) At(i int) Message { return l.msgs[i] }

// Messages returns a copy of the entries.
func (l Log) Messages() []Message { return cloneMessages(l.msgs) }

func (l Log) Append(m Message) Log {
	next := make([]Message, len(l.msgs), len(l.msgs)+1)
	copy(next, l.msgs)
	return Log{msgs: append(next, m)}
}

// ReplaceByID swaps the entry with the given id for m, keeping its position.
// The second return value is false, and the log unchanged, if id is absent.
func (l Log) ReplaceByID(id string, m Message) (Log, bool) {
	idx := l.IndexOf(id)
	if idx < 0 {
		return l, false
	}
	next := cloneMessages(l.msgs)
	next[idx] = m
	return Log{msgs: next}, true
}

func (l Log) IndexOf(id string) int {
	for i, m := range l.msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (l Log) Pending() []Message {
	var ret []Message
	for _, m := range l.msgs {
		if m.Pending {
			ret = append(ret, m)
		}
	}
	return ret
}

// LastAnswer is the most recent assistant reply that is not a notice,
// placeholder or error entry.
func (l Log) LastAnswer() (Message, bool) {
	for i := len(l.msgs) - 1; i >= 0; i-- {
		m := l.msgs[i]
		if m.Origin == OriginAssistant && !m.Pending && !m.Error && !m.Notice {
			return m, true
		}
	}
	return Message{}, false
}

// Equal compares two logs entry by entry, ignoring timestamps.
func (l Log) Equal(other Log) bool {
	if len(l.msgs) != len(other.msgs) {
		return false
	}
	for i := range l.msgs {
		a, b := l.msgs[i], other.msgs[i]
		a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
		if len(a.Sources) == 0 && len(b.Sources) == 0 {
			a.Sources, b.Sources = nil, nil
		}
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return true
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		if m.Sources != nil {
			m.Sources = append([]string{}, m.Sources...)
		}
		out[i] = m
	}
	return out
}
