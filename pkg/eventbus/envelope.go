package eventbus

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/pkg/errors"
)

// Envelope is the wire form of a conversation.Event.
type Envelope struct {
	Type       string       `json:"type"`
	SessionID  string       `json:"session_id"`
	Category   string       `json:"category,omitempty"`
	Language   string       `json:"language,omitempty"`
	ReplacedID string       `json:"replaced_id,omitempty"`
	Failed     bool         `json:"failed,omitempty"`
	Message    *MessageJSON `json:"message,omitempty"`
	AtMs       int64        `json:"at_ms"`
}

type MessageJSON struct {
	ID      string   `json:"id"`
	Origin  string   `json:"origin"`
	Text    string   `json:"text"`
	Sources []string `json:"sources,omitempty"`
	Pending bool     `json:"pending,omitempty"`
	Error   bool     `json:"error,omitempty"`
	Notice  bool     `json:"notice,omitempty"`
}

func EnvelopeFromEvent(ev conversation.Event) Envelope {
	env := Envelope{
		Type:       string(ev.Type),
		SessionID:  ev.SessionID,
		Category:   ev.Selection.Category,
		Language:   ev.Selection.Language,
		ReplacedID: ev.ReplacedID,
		Failed:     ev.Failed,
		AtMs:       ev.At.UnixMilli(),
	}
	if m := ev.Message; m != nil {
		env.Message = &MessageJSON{
			ID:      m.ID,
			Origin:  string(m.Origin),
			Text:    m.Text,
			Sources: m.Sources,
			Pending: m.Pending,
			Error:   m.Error,
			Notice:  m.Notice,
		}
	}
	return env
}

func (e Envelope) At() time.Time { return time.UnixMilli(e.AtMs) }

func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errors.Wrap(err, "marshal envelope")
}

func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, errors.Wrap(err, "unmarshal envelope")
	}
	return e, nil
}
