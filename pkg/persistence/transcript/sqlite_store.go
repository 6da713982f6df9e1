package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite transcript store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_sessions (
		  session_id TEXT PRIMARY KEY,
		  user_email TEXT NOT NULL DEFAULT '',
		  category TEXT NOT NULL DEFAULT '',
		  language TEXT NOT NULL DEFAULT '',
		  created_at_ms INTEGER NOT NULL,
		  last_activity_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS transcript_sessions_by_last_activity
		  ON transcript_sessions(last_activity_ms DESC, session_id ASC);`,
		`CREATE TABLE IF NOT EXISTS transcript_entries (
		  session_id TEXT NOT NULL,
		  entry_id TEXT NOT NULL,
		  seq INTEGER NOT NULL,
		  origin TEXT NOT NULL,
		  text TEXT NOT NULL,
		  sources_json TEXT NOT NULL DEFAULT '[]',
		  is_error INTEGER NOT NULL DEFAULT 0,
		  is_notice INTEGER NOT NULL DEFAULT 0,
		  category TEXT NOT NULL DEFAULT '',
		  language TEXT NOT NULL DEFAULT '',
		  created_at_ms INTEGER NOT NULL,
		  PRIMARY KEY (session_id, entry_id)
		);`,
		`CREATE INDEX IF NOT EXISTS transcript_entries_by_seq
		  ON transcript_entries(session_id, seq);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite transcript store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertSession(ctx context.Context, record SessionRecord) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	record = normalizeSessionRecord(record, time.Now().UnixMilli())
	if record.SessionID == "" {
		return errors.New("sqlite transcript store: session id is empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript_sessions (session_id, user_email, category, language, created_at_ms, last_activity_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_email = CASE WHEN excluded.user_email <> '' THEN excluded.user_email ELSE transcript_sessions.user_email END,
			category = CASE WHEN excluded.category <> '' THEN excluded.category ELSE transcript_sessions.category END,
			language = CASE WHEN excluded.language <> '' THEN excluded.language ELSE transcript_sessions.language END,
			created_at_ms = CASE
				WHEN transcript_sessions.created_at_ms > 0 AND transcript_sessions.created_at_ms < excluded.created_at_ms
				THEN transcript_sessions.created_at_ms
				ELSE excluded.created_at_ms
			END,
			last_activity_ms = CASE
				WHEN excluded.last_activity_ms > transcript_sessions.last_activity_ms THEN excluded.last_activity_ms
				ELSE transcript_sessions.last_activity_ms
			END
	`, record.SessionID, record.User, record.Category, record.Language, record.CreatedAtMs, record.LastActivityMs)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: upsert session")
	}
	return nil
}

const sessionColumns = `
	s.session_id, s.user_email, s.category, s.language, s.created_at_ms, s.last_activity_ms,
	(SELECT COUNT(*) FROM transcript_entries e WHERE e.session_id = s.session_id)
`

func scanSession(sc interface{ Scan(...any) error }) (SessionRecord, error) {
	var r SessionRecord
	err := sc.Scan(&r.SessionID, &r.User, &r.Category, &r.Language, &r.CreatedAtMs, &r.LastActivityMs, &r.MessageCount)
	return r, err
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (SessionRecord, bool, error) {
	if s == nil || s.db == nil {
		return SessionRecord{}, false, errors.New("sqlite transcript store: db is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionRecord{}, false, errors.New("sqlite transcript store: session id is empty")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM transcript_sessions s WHERE s.session_id = ?`, sessionID)
	r, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, errors.Wrap(err, "sqlite transcript store: get session")
	}
	return r, true, nil
}

// ListSessions returns sessions by most recent activity. limit <= 0 means
// no limit.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int, sinceMs int64) ([]SessionRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite transcript store: db is nil")
	}
	// sqlite reads a negative LIMIT as no limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + sessionColumns + ` FROM transcript_sessions s`
	args := make([]any, 0, 2)
	if sinceMs > 0 {
		query += ` WHERE s.last_activity_ms >= ?`
		args = append(args, sinceMs)
	}
	query += ` ORDER BY s.last_activity_ms DESC, s.session_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: list sessions")
	}
	defer func() { _ = rows.Close() }()

	var records []SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: scan session")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: iterate sessions")
	}
	return records, nil
}

// AppendEntry inserts entry, or overwrites an entry with the same id.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry Entry) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	if entry.SessionID == "" || entry.ID == "" {
		return errors.New("sqlite transcript store: entry needs a session id and an id")
	}
	if entry.CreatedAtMs <= 0 {
		entry.CreatedAtMs = time.Now().UnixMilli()
	}
	sources := entry.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: marshal sources")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transcript_entries (
			session_id, entry_id, seq, origin, text, sources_json, is_error, is_notice, category, language, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, entry_id) DO UPDATE SET
			seq = excluded.seq,
			origin = excluded.origin,
			text = excluded.text,
			sources_json = excluded.sources_json,
			is_error = excluded.is_error,
			is_notice = excluded.is_notice,
			category = excluded.category,
			language = excluded.language
	`, entry.SessionID, entry.ID, entry.Seq, entry.Origin, entry.Text, string(sourcesJSON),
		boolToInt(entry.Error), boolToInt(entry.Notice), entry.Category, entry.Language, entry.CreatedAtMs); err != nil {
		return errors.Wrap(err, "sqlite transcript store: upsert entry")
	}

	// Keep the session index in step with new entries.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transcript_sessions (session_id, created_at_ms, last_activity_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_activity_ms = CASE
				WHEN excluded.last_activity_ms > transcript_sessions.last_activity_ms THEN excluded.last_activity_ms
				ELSE transcript_sessions.last_activity_ms
			END
	`, entry.SessionID, entry.CreatedAtMs, entry.CreatedAtMs); err != nil {
		return errors.Wrap(err, "sqlite transcript store: touch session")
	}

	return tx.Commit()
}

func (s *SQLiteStore) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite transcript store: db is nil")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, entry_id, seq, origin, text, sources_json, is_error, is_notice, category, language, created_at_ms
		FROM transcript_entries
		WHERE session_id = ?
		ORDER BY seq ASC, created_at_ms ASC
	`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: query entries")
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e               Entry
			sourcesJSON     string
			isErr, isNotice int
		)
		if err := rows.Scan(&e.SessionID, &e.ID, &e.Seq, &e.Origin, &e.Text, &sourcesJSON, &isErr, &isNotice, &e.Category, &e.Language, &e.CreatedAtMs); err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: scan entry")
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &e.Sources); err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: unmarshal sources")
		}
		e.Error = isErr == 1
		e.Notice = isNotice == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
