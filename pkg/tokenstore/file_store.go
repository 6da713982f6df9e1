package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the token in a small YAML document, next to whatever other
// keys the user put in that file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = &FileStore{}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file token store: empty path")
	}
	return &FileStore{path: os.ExpandEnv(path)}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	token := doc[Key]
	return token, token != "", nil
}

func (s *FileStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if token == "" {
		delete(doc, Key)
	} else {
		doc[Key] = token
	}
	return s.write(doc)
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.Set(ctx, "")
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (map[string]string, error) {
	doc := map[string]string{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "file token store: read")
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrapf(err, "file token store: parse %s", s.path)
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}

// write replaces the file through a rename so a crash never leaves a
// half-written credentials file behind.
func (s *FileStore) write(doc map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "file token store: create directory")
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "file token store: marshal")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.yaml")
	if err != nil {
		return errors.Wrap(err, "file token store: temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "file token store: write")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "file token store: chmod")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "file token store: close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "file token store: rename")
}
