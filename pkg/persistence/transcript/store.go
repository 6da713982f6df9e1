// Package transcript keeps a local record of finished conversation entries so
// past sessions can be listed and re-read from the command line.
package transcript

import (
	"context"
	"strings"
)

// SessionRecord is one chat activation as seen by the transcript index.
type SessionRecord struct {
	SessionID      string `json:"session_id"`
	User           string `json:"user,omitempty"`
	Category       string `json:"category"`
	Language       string `json:"language"`
	CreatedAtMs    int64  `json:"created_at_ms"`
	LastActivityMs int64  `json:"last_activity_ms"`
	MessageCount   int    `json:"message_count"`
}

// Entry is a finalized message. Seq is the position in the conversation,
// which for an answer is the slot its placeholder occupied.
type Entry struct {
	SessionID   string   `json:"session_id"`
	ID          string   `json:"id"`
	Seq         int      `json:"seq"`
	Origin      string   `json:"origin"`
	Text        string   `json:"text"`
	Sources     []string `json:"sources,omitempty"`
	Error       bool     `json:"error,omitempty"`
	Notice      bool     `json:"notice,omitempty"`
	Category    string   `json:"category,omitempty"`
	Language    string   `json:"language,omitempty"`
	CreatedAtMs int64    `json:"created_at_ms"`
}

type Store interface {
	UpsertSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, bool, error)
	ListSessions(ctx context.Context, limit int, sinceMs int64) ([]SessionRecord, error)
	AppendEntry(ctx context.Context, entry Entry) error
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
	Close() error
}

func normalizeSessionRecord(r SessionRecord, nowMs int64) SessionRecord {
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.CreatedAtMs <= 0 {
		r.CreatedAtMs = nowMs
	}
	if r.LastActivityMs <= 0 {
		r.LastActivityMs = r.CreatedAtMs
	}
	return r
}

// mergeSessionRecord keeps the earliest creation time and the latest
// activity, and lets non-empty fields of next win.
func mergeSessionRecord(prev, next SessionRecord) SessionRecord {
	if prev.SessionID == "" {
		return next
	}
	out := prev
	if next.User != "" {
		out.User = next.User
	}
	if next.Category != "" {
		out.Category = next.Category
	}
	if next.Language != "" {
		out.Language = next.Language
	}
	if prev.CreatedAtMs <= 0 || (next.CreatedAtMs > 0 && next.CreatedAtMs < prev.CreatedAtMs) {
		out.CreatedAtMs = next.CreatedAtMs
	}
	if next.LastActivityMs > out.LastActivityMs {
		out.LastActivityMs = next.LastActivityMs
	}
	return out
}
