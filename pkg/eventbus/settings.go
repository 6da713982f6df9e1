package eventbus

import (
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
)

const SectionSlug = "redis"

// Settings selects the transport conversation events are published on.
// With Enabled false events stay in process on a go channel.
type Settings struct {
	Enabled  bool   `glazed:"redis-enabled"`
	Addr     string `glazed:"redis-addr"`
	Stream   string `glazed:"redis-stream"`
	Group    string `glazed:"redis-group"`
	Consumer string `glazed:"redis-consumer"`
}

const DefaultStream = "lawchat.conversation"

func NewSection() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"Redis Streams transport for conversation events",
		schema.WithFields(
			fields.New("redis-enabled", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Publish conversation events to Redis Streams")),
			fields.New("redis-addr", fields.TypeString,
				fields.WithDefault("localhost:6379"),
				fields.WithHelp("Redis address host:port")),
			fields.New("redis-stream", fields.TypeString,
				fields.WithDefault(DefaultStream),
				fields.WithHelp("Stream (topic) conversation events go to")),
			fields.New("redis-group", fields.TypeString,
				fields.WithDefault("lawchat-tail"),
				fields.WithHelp("Redis consumer group")),
			fields.New("redis-consumer", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Redis consumer name (random when empty)")),
		),
	)
}
