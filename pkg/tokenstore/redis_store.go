package tokenstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token in a redis string. Useful when several lawchat
// hosts should share one login.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = &RedisStore{}

func NewRedisStore(addr, prefix string) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + Key}
}

func (s *RedisStore) RedisKey() string { return s.key }

func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis token store: get")
	}
	return token, token != "", nil
}

func (s *RedisStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}
	return errors.Wrap(s.client.Set(ctx, s.key, token, 0).Err(), "redis token store: set")
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.client.Del(ctx, s.key).Err(), "redis token store: clear")
}

func (s *RedisStore) Close() error { return s.client.Close() }
