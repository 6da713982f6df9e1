package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore keeps the token in a key/value table, so it can share a
// database file with the transcript store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite token store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite token store: open")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteDSNForFile returns a DSN with WAL and a busy timeout, matching the
// transcript store's settings for the same file.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite token store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS client_state (
		  key TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);`)
	return errors.Wrap(err, "sqlite token store: migrate")
}

func (s *SQLiteStore) Get(ctx context.Context) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("sqlite token store: db is nil")
	}
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, Key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "sqlite token store: get")
	}
	return token, token != "", nil
}

func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite token store: db is nil")
	}
	if token == "" {
		return s.Clear(ctx)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, Key, token)
	return errors.Wrap(err, "sqlite token store: set")
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite token store: db is nil")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, Key)
	return errors.Wrap(err, "sqlite token store: clear")
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
