// Package auth owns the login token and the current user. It drives the
// unauthenticated → validating → authenticated / error state machine and keeps
// the persisted token in step with it.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Backend is the slice of the API client the manager talks to.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Signup(ctx context.Context, profile api.SignupRequest) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	ValidateToken(ctx context.Context, token string) (*api.ValidateResponse, error)
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, token, newPassword string) error
}

type unauthorizedNotifier interface {
	OnUnauthorized(h api.UnauthorizedHandler) func()
}

var ErrMissingCredentials = errors.New("Please enter both email and password")

type Manager struct {
	backend Backend
	store   tokenstore.Store

	mu    sync.Mutex
	state Snapshot

	// deliverMu keeps observers seeing transitions in the order they happened.
	deliverMu sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int

	detach func()
}

// NewManager reads the persisted token once. When one exists the manager
// starts out in StatusValidating, so nobody ever observes a logged-out state
// on the way to a successful Start.
func NewManager(ctx context.Context, backend Backend, store tokenstore.Store) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("auth manager: nil backend")
	}
	if store == nil {
		return nil, errors.New("auth manager: nil token store")
	}
	m := &Manager{
		backend:   backend,
		store:     store,
		state:     Snapshot{Status: StatusUnauthenticated},
		observers: map[int]func(Snapshot){},
		detach:    func() {},
	}

	token, ok, err := store.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not read persisted token, starting logged out")
	} else if ok {
		m.state = Snapshot{Status: StatusValidating, Token: token}
	}

	if n, ok := backend.(unauthorizedNotifier); ok {
		m.detach = n.OnUnauthorized(m.HandleUnauthorized)
	}
	return m, nil
}

// Close stops listening for 401 responses.
func (m *Manager) Close() {
	m.detach()
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe calls fn with the current snapshot and then after every
// transition. Observers must not call back into transition methods.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	current := m.state
	m.deliverMu.Lock()
	m.mu.Unlock()

	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	fn(current)
	m.deliverMu.Unlock()

	return func() {
		m.deliverMu.Lock()
		delete(m.observers, id)
		m.deliverMu.Unlock()
	}
}

// Start validates a persisted token with the backend.
func (m *Manager) Start(ctx context.Context) Snapshot {
	current := m.Snapshot()
	if current.Status != StatusValidating || current.Token == "" {
		return m.transition(ctx, Snapshot{Status: StatusUnauthenticated}, clearToken)
	}

	res, err := m.backend.ValidateToken(ctx, current.Token)
	if err != nil {
		log.Info().Err(err).Msg("stored token rejected, logging out")
		return m.transition(ctx, Snapshot{Status: StatusUnauthenticated}, clearToken)
	}
	log.Debug().Str("email", res.User.Email).Msg("stored token validated")
	return m.transition(ctx, Snapshot{Status: StatusAuthenticated, User: res.User, Token: current.Token}, keepToken)
}

func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		m.transition(ctx, Snapshot{Status: StatusError, Err: ErrMissingCredentials.Error()}, keepToken)
		return nil, ErrMissingCredentials
	}
	m.transition(ctx, Snapshot{Status: StatusValidating}, keepToken)

	res, err := m.backend.Login(ctx, email, password)
	return m.finishCredentialFlow(ctx, "login", res, err, loginFallback)
}

func (m *Manager) Signup(ctx context.Context, profile api.SignupRequest) (*api.User, error) {
	if strings.TrimSpace(profile.Email) == "" || profile.Password == "" {
		m.transition(ctx, Snapshot{Status: StatusError, Err: ErrMissingCredentials.Error()}, keepToken)
		return nil, ErrMissingCredentials
	}
	m.transition(ctx, Snapshot{Status: StatusValidating}, keepToken)

	res, err := m.backend.Signup(ctx, profile)
	return m.finishCredentialFlow(ctx, "signup", res, err, signupFallback)
}

func (m *Manager) finishCredentialFlow(ctx context.Context, op string, res *api.AuthResponse, err error, fallback string) (*api.User, error) {
	if err == nil && (res == nil || res.User == nil || res.Token == "") {
		err = errors.Errorf("%s: incomplete response from backend", op)
	}
	if err != nil {
		msg := api.UserMessage(err, fallback)
		log.Warn().Err(err).Str("op", op).Msg("credential flow failed")
		m.transition(ctx, Snapshot{Status: StatusError, Err: msg}, clearToken)
		return nil, errors.Wrap(err, op)
	}
	next := Snapshot{Status: StatusAuthenticated, User: res.User, Token: res.Token}
	m.transition(ctx, next, storeToken)
	log.Info().Str("email", res.User.Email).Str("op", op).Msg("authenticated")
	return res.User, nil
}

// Logout tells the backend (best effort) and always forgets the token.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.backend.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("backend logout failed, clearing credentials anyway")
	}
	m.transition(ctx, Snapshot{Status: StatusUnauthenticated}, clearToken)
}

// HandleUnauthorized is the global 401 policy. It is registered with the API
// client when the backend supports it.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	m.transition(ctx, Snapshot{Status: StatusUnauthenticated}, clearToken)
}

func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("Please enter your email")
	}
	if err := m.backend.ResetPassword(ctx, email); err != nil {
		return errors.New(api.UserMessage(err, resetFallback))
	}
	return nil
}

func (m *Manager) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return errors.New("Please enter the reset token and a new password")
	}
	if err := m.backend.UpdatePassword(ctx, resetToken, newPassword); err != nil {
		return errors.New(api.UserMessage(err, updateFallback))
	}
	return nil
}

type tokenEffect int

const (
	keepToken tokenEffect = iota
	storeToken
	clearToken
)

// transition writes the token store and swaps the in-memory state under one
// lock, then hands the new snapshot to observers in order.
func (m *Manager) transition(ctx context.Context, next Snapshot, effect tokenEffect) Snapshot {
	m.mu.Lock()
	switch effect {
	case storeToken:
		if err := m.store.Set(ctx, next.Token); err != nil {
			log.Error().Err(err).Msg("could not persist token")
		}
	case clearToken:
		if err := m.store.Clear(ctx); err != nil {
			log.Error().Err(err).Msg("could not clear persisted token")
		}
		next.Token = ""
		next.User = nil
	case keepToken:
	}
	m.state = next
	m.deliverMu.Lock()
	m.mu.Unlock()

	for id := 0; id < m.nextObs; id++ {
		if fn, ok := m.observers[id]; ok {
			fn(next)
		}
	}
	m.deliverMu.Unlock()
	return next
}
