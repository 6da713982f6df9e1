// Package tokenstore persists the single auth token that keeps a user logged
// in across lawchat runs.
//
// Every backend stores exactly one value under Key. An absent key means the
// user is logged out.
package tokenstore

import (
	"context"
	"sync"
)

// Key is the well-known name the token is stored under in every backend.
const Key = "authToken"

type Store interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close() error
}

// MemoryStore keeps the token for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

var _ Store = &MemoryStore{}

func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{token: initial}
}

func (s *MemoryStore) Get(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != "", nil
}

func (s *MemoryStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	return s.Set(context.Background(), "")
}

func (s *MemoryStore) Close() error { return nil }
