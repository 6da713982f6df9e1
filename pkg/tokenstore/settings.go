package tokenstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"
)

const SectionSlug = "credentials"

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Settings selects and configures the token backend.
type Settings struct {
	Backend     string `glazed:"token-store"`
	File        string `glazed:"token-file"`
	DB          string `glazed:"token-db"`
	RedisAddr   string `glazed:"token-redis-addr"`
	RedisPrefix string `glazed:"token-redis-prefix"`
}

// NewSection returns the glazed section holding the credential settings.
func NewSection() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"Where the login token is persisted between runs",
		schema.WithFields(
			fields.New("token-store", fields.TypeChoice,
				fields.WithChoices(BackendFile, BackendSQLite, BackendRedis, BackendMemory),
				fields.WithDefault(BackendFile),
				fields.WithHelp("Token persistence backend"),
			),
			fields.New("token-file", fields.TypeString,
				fields.WithDefault("~/.lawchat/credentials.yaml"),
				fields.WithHelp("YAML file used by the file token store"),
			),
			fields.New("token-db", fields.TypeString,
				fields.WithDefault("~/.lawchat/lawchat.db"),
				fields.WithHelp("SQLite database used by the sqlite token store"),
			),
			fields.New("token-redis-addr", fields.TypeString,
				fields.WithDefault("localhost:6379"),
				fields.WithHelp("Redis address used by the redis token store"),
			),
			fields.New("token-redis-prefix", fields.TypeString,
				fields.WithDefault("lawchat:"),
				fields.WithHelp("Key prefix used by the redis token store"),
			),
		),
	)
}

// Open builds the configured Store.
func Open(s Settings) (Store, error) {
	switch s.Backend {
	case BackendFile, "":
		path, err := ExpandHome(s.File)
		if err != nil {
			return nil, err
		}
		return NewFileStore(path)
	case BackendSQLite:
		path, err := ExpandHome(s.DB)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "create token db directory")
		}
		dsn, err := SQLiteDSNForFile(path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn)
	case BackendRedis:
		return NewRedisStore(s.RedisAddr, s.RedisPrefix), nil
	case BackendMemory:
		return NewMemoryStore(""), nil
	default:
		return nil, errors.Errorf("unknown token store %q", s.Backend)
	}
}

// ExpandHome resolves a leading ~ and environment variables in path.
func ExpandHome(path string) (string, error) {
	path = os.ExpandEnv(strings.TrimSpace(path))
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}
