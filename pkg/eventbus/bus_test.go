package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type okSender struct{}

func (okSender) SendMessage(context.Context, string, string, string, string) (*api.ChatResponse, error) {
	return &api.ChatResponse{Answer: "yes", Sources: []string{"s"}}, nil
}

func TestBus_InMemoryCarriesConversationEvents(t *testing.T) {
	bus, err := Build(Settings{Enabled: false, Stream: "test.conv"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	require.Equal(t, "test.conv", bus.Topic())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan Envelope, 16)
	errDone := errors.New("done")
	tailErr := make(chan error, 1)
	subscribed := make(chan struct{})
	var once sync.Once
	go func() {
		tailErr <- bus.Tail(ctx, func(env Envelope) error {
			if env.Type == "ping" {
				once.Do(func() { close(subscribed) })
				return nil
			}
			got <- env
			if env.Type == string(conversation.EventSendFinished) {
				return errDone
			}
			return nil
		})
	}()

	// gochannel drops messages published before a subscriber exists
	require.Eventually(t, func() bool {
		_ = bus.Publish(Envelope{Type: "ping"})
		select {
		case <-subscribed:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	m := conversation.New(okSender{}, &session.Bootstrap{
		SessionID:  "s-1",
		Categories: []string{"Tax Law"},
		Languages:  map[string]string{"English": "en"},
	}, conversation.WithObserver(bus.Observer()))
	require.NoError(t, m.SelectCategory("Tax Law"))
	_, err = m.SendMessage(ctx, "q")
	require.NoError(t, err)

	require.ErrorIs(t, <-tailErr, errDone)
	close(got)

	var types []string
	var replaced *Envelope
	for env := range got {
		types = append(types, env.Type)
		require.Equal(t, "s-1", env.SessionID)
		if env.Type == string(conversation.EventMessageReplaced) {
			e := env
			replaced = &e
		}
	}
	require.Equal(t, []string{
		"selection_changed", "message_appended", "message_appended",
		"send_started", "message_replaced", "send_finished",
	}, types)
	require.NotNil(t, replaced)
	require.Equal(t, "pending-1", replaced.ReplacedID)
	require.Equal(t, "yes", replaced.Message.Text)
	require.Equal(t, "Tax Law", replaced.Category)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	env := EnvelopeFromEvent(conversation.Event{
		Type:      conversation.EventMessageAppended,
		SessionID: "s",
		Message:   &conversation.Message{ID: "m", Origin: conversation.OriginUser, Text: "hi"},
		Selection: conversation.Selection{Category: "Tax Law", Language: "English"},
		At:        at,
	})
	b, err := env.Marshal()
	require.NoError(t, err)
	back, err := UnmarshalEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, env, back)
	require.True(t, back.At().Equal(at))

	_, err = UnmarshalEnvelope([]byte("{"))
	require.Error(t, err)
}

type gatedPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	types   []string
}

func (p *gatedPublisher) Publish(_ string, msgs ...*message.Message) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range msgs {
		p.types = append(p.types, msg.Metadata.Get("type"))
	}
	return nil
}

func (p *gatedPublisher) Close() error { return nil }

func TestBus_ObserverDoesNotWaitForTransport(t *testing.T) {
	pub := &gatedPublisher{release: make(chan struct{})}
	bus := &Bus{topic: "t", publisher: pub}
	observe := bus.Observer()

	done := make(chan struct{})
	go func() {
		observe(conversation.Event{Type: conversation.EventSelectionChanged, SessionID: "s"})
		observe(conversation.Event{Type: conversation.EventSendStarted, SessionID: "s"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked on a stalled publisher")
	}

	close(pub.release)
	require.NoError(t, bus.Close())
	require.Equal(t, []string{"selection_changed", "send_started"}, pub.types)

	// events after close are ignored
	observe(conversation.Event{Type: conversation.EventSendFinished, SessionID: "s"})
	require.Len(t, pub.types, 2)
}

func TestBus_PublishOnlyCannotTail(t *testing.T) {
	bus := &Bus{topic: "t", publisher: &gatedPublisher{release: make(chan struct{})}}
	err := bus.Tail(context.Background(), func(Envelope) error { return nil })
	require.Error(t, err)
}
