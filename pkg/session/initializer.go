// Package session performs the one-time bootstrap of a chat activation:
// create a backend session, then load the category and language sets.
package session

import (
	"context"
	"sync"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const InitFailedMessage = "Failed to initialize application. Please restart lawchat."

// Backend is the part of the API client needed to bootstrap.
type Backend interface {
	CreateSession(ctx context.Context) (*api.SessionResponse, error)
	FetchCategories(ctx context.Context) (*api.CategoriesResponse, error)
	FetchLanguages(ctx context.Context) (*api.LanguagesResponse, error)
}

// Bootstrap is everything a conversation needs from the backend before the
// first message. It is immutable for the lifetime of the activation.
type Bootstrap struct {
	SessionID  string
	Categories []string
	Languages  map[string]string
}

// HasLanguage reports whether name is one of the offered display names.
func (b *Bootstrap) HasLanguage(name string) bool {
	if b == nil {
		return false
	}
	_, ok := b.Languages[name]
	return ok
}

// InitError is returned when any bootstrap step fails. Message is safe to
// show to the user; the cause is kept for logs.
type InitError struct {
	Step    string
	Message string
	Err     error
}

func (e *InitError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }

// Initializer runs the bootstrap sequence at most once. A new activation
// needs a new Initializer; there is no retry.
type Initializer struct {
	backend Backend

	once      sync.Once
	bootstrap *Bootstrap
	err       error
}

func NewInitializer(backend Backend) *Initializer {
	return &Initializer{backend: backend}
}

// Run creates the session, then fetches categories, then languages. Later
// calls return the result of the first one.
func (i *Initializer) Run(ctx context.Context) (*Bootstrap, error) {
	i.once.Do(func() {
		i.bootstrap, i.err = i.run(ctx)
	})
	return i.bootstrap, i.err
}

func (i *Initializer) run(ctx context.Context) (*Bootstrap, error) {
	if i.backend == nil {
		return nil, fail("init", errors.New("no backend configured"))
	}

	sess, err := i.backend.CreateSession(ctx)
	if err != nil {
		return nil, fail("create session", err)
	}
	if sess == nil || sess.SessionID == "" {
		return nil, fail("create session", errors.New("empty session id"))
	}

	cats, err := i.backend.FetchCategories(ctx)
	if err != nil {
		return nil, fail("fetch categories", err)
	}

	langs, err := i.backend.FetchLanguages(ctx)
	if err != nil {
		return nil, fail("fetch languages", err)
	}

	b := &Bootstrap{
		SessionID:  sess.SessionID,
		Categories: append([]string(nil), cats.Categories...),
		Languages:  map[string]string{},
	}
	for name, code := range langs.Languages {
		b.Languages[name] = code
	}

	log.Debug().
		Str("session_id", b.SessionID).
		Int("categories", len(b.Categories)).
		Int("languages", len(b.Languages)).
		Msg("session initialized")
	return b, nil
}

func fail(step string, err error) *InitError {
	log.Error().Err(err).Str("step", step).Msg("session initialization failed")
	return &InitError{Step: step, Message: InitFailedMessage, Err: err}
}
