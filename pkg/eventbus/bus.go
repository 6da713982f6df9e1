// Package eventbus publishes conversation events on a watermill transport so
// other processes (or another lawchat) can follow a chat as it happens.
package eventbus

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ObserverBuffer is how many events Observer queues before it starts
// dropping them.
const ObserverBuffer = 256

type Bus struct {
	topic      string
	publisher  message.Publisher
	subscriber message.Subscriber // nil for publish-only buses
	closers    []func() error

	mu      sync.Mutex
	queue   chan Envelope
	drained chan struct{}
	closed  bool
}

// NewInMemory is a bus on a single go channel, used when redis is disabled
// and in tests.
func NewInMemory(topic string) *Bus {
	if topic == "" {
		topic = DefaultStream
	}
	// Blocking until ack keeps events in publish order for in-process tails.
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, NewWatermillLogger(log.Logger))
	return &Bus{
		topic:      topic,
		publisher:  ch,
		subscriber: ch,
		closers:    []func() error{ch.Close},
	}
}

// BuildPublisher is Build without a subscriber, for processes that only
// publish. No consumer group is joined.
func BuildPublisher(s Settings) (*Bus, error) {
	if !s.Enabled {
		return NewInMemory(s.Stream), nil
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	pub, err := newRedisPublisher(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Bus{
		topic:     streamOrDefault(s.Stream),
		publisher: pub,
		closers:   []func() error{pub.Close, client.Close},
	}, nil
}

// Build returns a Redis Streams bus when s.Enabled, otherwise NewInMemory.
func Build(s Settings) (*Bus, error) {
	if !s.Enabled {
		return NewInMemory(s.Stream), nil
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	pub, err := newRedisPublisher(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	consumer := s.Consumer
	if consumer == "" {
		consumer = "lawchat-" + uuid.NewString()[:8]
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: s.Group,
		Consumer:      consumer,
	}, NewWatermillLogger(log.Logger))
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "redis subscriber")
	}

	return &Bus{
		topic:      streamOrDefault(s.Stream),
		publisher:  pub,
		subscriber: sub,
		closers:    []func() error{sub.Close, pub.Close, client.Close},
	}, nil
}

func newRedisPublisher(client redis.UniversalClient) (message.Publisher, error) {
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, NewWatermillLogger(log.Logger))
	return pub, errors.Wrap(err, "redis publisher")
}

func streamOrDefault(stream string) string {
	if stream == "" {
		return DefaultStream
	}
	return stream
}

func (b *Bus) Topic() string { return b.topic }

// Close waits for queued observer events to be published, then closes the
// transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	queue, drained := b.queue, b.drained
	b.queue = nil
	b.mu.Unlock()
	if queue != nil {
		close(queue)
		<-drained
	}

	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *Bus) Publish(env Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", env.Type)
	msg.Metadata.Set("session_id", env.SessionID)
	return errors.Wrap(b.publisher.Publish(b.topic, msg), "publish conversation event")
}

// Observer queues every conversation event for a background publisher, so a
// slow or unreachable transport never stalls the conversation. Events are
// published in order; when the queue is full they are dropped and logged.
func (b *Bus) Observer() conversation.Observer {
	b.mu.Lock()
	if b.queue == nil && !b.closed {
		b.queue = make(chan Envelope, ObserverBuffer)
		b.drained = make(chan struct{})
		go b.publishQueued(b.queue, b.drained)
	}
	b.mu.Unlock()

	return func(ev conversation.Event) {
		env := EnvelopeFromEvent(ev)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed || b.queue == nil {
			return
		}
		select {
		case b.queue <- env:
		default:
			log.Warn().Str("type", env.Type).Msg("event queue full, dropping conversation event")
		}
	}
}

func (b *Bus) publishQueued(queue <-chan Envelope, drained chan<- struct{}) {
	defer close(drained)
	for env := range queue {
		if err := b.Publish(env); err != nil {
			log.Warn().Err(err).Str("type", env.Type).Msg("could not publish conversation event")
		}
	}
}

// Tail calls fn for every envelope until ctx is done or fn returns an error.
// Every message is acked, including ones that do not decode.
func (b *Bus) Tail(ctx context.Context, fn func(Envelope) error) error {
	if b.subscriber == nil {
		return errors.New("event bus has no subscriber")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	msgs, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			env, err := UnmarshalEnvelope(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Str("uuid", msg.UUID).Msg("skipping undecodable event")
				msg.Ack()
				continue
			}
			err = fn(env)
			msg.Ack()
			if err != nil {
				return err
			}
		}
	}
}

// EnsureGroupAtTail creates the consumer group at the end of the stream so
// a new tail does not replay history.
func EnsureGroupAtTail(ctx context.Context, addr, stream, group string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at tail")
	return nil
}
