package transcript

import (
	"context"
	"sync"

	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// Recorder writes finalized conversation entries to a Store. Placeholders are
// never written; their slot is reserved so the answer lands where the
// placeholder was.
type Recorder struct {
	store Store
	user  string

	mu       sync.Mutex
	seq      int
	reserved map[string]int
}

func NewRecorder(store Store, user string) *Recorder {
	return &Recorder{store: store, user: user, reserved: map[string]int{}}
}

// Observer returns the hook to pass to conversation.WithObserver.
func (r *Recorder) Observer() conversation.Observer {
	return func(ev conversation.Event) {
		r.handle(context.Background(), ev)
	}
}

func (r *Recorder) handle(ctx context.Context, ev conversation.Event) {
	if r == nil || r.store == nil || ev.SessionID == "" {
		return
	}

	switch ev.Type {
	case conversation.EventSelectionChanged:
		r.touchSession(ctx, ev)

	case conversation.EventMessageAppended:
		if ev.Message == nil {
			return
		}
		r.mu.Lock()
		r.seq++
		seq := r.seq
		if ev.Message.Pending {
			r.reserved[ev.Message.ID] = seq
		}
		r.mu.Unlock()
		if ev.Message.Pending {
			return
		}
		r.write(ctx, ev, seq)

	case conversation.EventMessageReplaced:
		if ev.Message == nil {
			return
		}
		r.mu.Lock()
		seq, ok := r.reserved[ev.ReplacedID]
		delete(r.reserved, ev.ReplacedID)
		if !ok {
			r.seq++
			seq = r.seq
		}
		r.mu.Unlock()
		r.write(ctx, ev, seq)

	case conversation.EventSendStarted, conversation.EventSendFinished:
	}
}

func (r *Recorder) touchSession(ctx context.Context, ev conversation.Event) {
	err := r.store.UpsertSession(ctx, SessionRecord{
		SessionID:      ev.SessionID,
		User:           r.user,
		Category:       ev.Selection.Category,
		Language:       ev.Selection.Language,
		LastActivityMs: ev.At.UnixMilli(),
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("could not record session")
	}
}

func (r *Recorder) write(ctx context.Context, ev conversation.Event, seq int) {
	m := ev.Message
	err := r.store.AppendEntry(ctx, Entry{
		SessionID:   ev.SessionID,
		ID:          m.ID,
		Seq:         seq,
		Origin:      string(m.Origin),
		Text:        m.Text,
		Sources:     m.Sources,
		Error:       m.Error,
		Notice:      m.Notice,
		Category:    ev.Selection.Category,
		Language:    ev.Selection.Language,
		CreatedAtMs: m.CreatedAt.UnixMilli(),
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", ev.SessionID).Str("id", m.ID).Msg("could not record transcript entry")
		return
	}
	if r.user != "" {
		r.touchSession(ctx, ev)
	}
}
