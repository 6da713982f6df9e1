package transcript

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// InMemoryStore mirrors the ordering of the SQLite store. It backs
// --no-transcript runs and tests.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]SessionRecord
	entries  map[string]map[string]Entry
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: map[string]SessionRecord{},
		entries:  map[string]map[string]Entry{},
	}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) UpsertSession(_ context.Context, record SessionRecord) error {
	record = normalizeSessionRecord(record, time.Now().UnixMilli())
	if record.SessionID == "" {
		return errors.New("in-memory transcript store: session id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.SessionID] = mergeSessionRecord(s.sessions[record.SessionID], record)
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, sessionID string) (SessionRecord, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionRecord{}, false, errors.New("in-memory transcript store: session id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[sessionID]
	if !ok {
		return SessionRecord{}, false, nil
	}
	r.MessageCount = len(s.entries[sessionID])
	return r, true, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context, limit int, sinceMs int64) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionRecord, 0, len(s.sessions))
	for id, r := range s.sessions {
		if sinceMs > 0 && r.LastActivityMs < sinceMs {
			continue
		}
		r.MessageCount = len(s.entries[id])
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityMs == out[j].LastActivityMs {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LastActivityMs > out[j].LastActivityMs
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendEntry(_ context.Context, entry Entry) error {
	if entry.SessionID == "" || entry.ID == "" {
		return errors.New("in-memory transcript store: entry needs a session id and an id")
	}
	if entry.CreatedAtMs <= 0 {
		entry.CreatedAtMs = time.Now().UnixMilli()
	}
	entry.Sources = append([]string(nil), entry.Sources...)

	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entries[entry.SessionID]
	if !ok {
		byID = map[string]Entry{}
		s.entries[entry.SessionID] = byID
	}
	byID[entry.ID] = entry

	r := s.sessions[entry.SessionID]
	s.sessions[entry.SessionID] = mergeSessionRecord(r, SessionRecord{
		SessionID:      entry.SessionID,
		CreatedAtMs:    entry.CreatedAtMs,
		LastActivityMs: entry.CreatedAtMs,
	})
	return nil
}

func (s *InMemoryStore) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries[sessionID]))
	for _, e := range s.entries[sessionID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq == out[j].Seq {
			return out[i].CreatedAtMs < out[j].CreatedAtMs
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}
