package gate

import (
	"sync"

	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/rs/zerolog/log"
)

// Navigator tracks the current location of the client and applies Decide on
// every visit and every auth transition.
type Navigator struct {
	mu       sync.Mutex
	status   auth.Status
	location string
	from     string
	decision Decision
}

func NewNavigator(initial auth.Status) *Navigator {
	return &Navigator{status: initial, location: DefaultLanding, decision: Decision{Outcome: Loading}}
}

// Bind keeps the navigator in step with the auth manager. A logout or a 401
// while on a protected path redirects to login.
func (n *Navigator) Bind(m *auth.Manager) func() {
	return m.Subscribe(func(s auth.Snapshot) {
		n.SetStatus(s.Status)
	})
}

func (n *Navigator) SetStatus(status auth.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
	n.applyLocked(n.location)
}

// Visit requests path and returns the resulting decision. Public paths always
// render.
func (n *Navigator) Visit(path string) Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.applyLocked(path)
}

// RedirectToLogin forces the login entry point, remembering where we were.
func (n *Navigator) RedirectToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !IsPublic(n.location) {
		n.from = n.location
	}
	n.location = LoginPath
	n.decision = Decision{Outcome: Render}
}

// CompleteLogin moves to the remembered destination, or DefaultLanding.
func (n *Navigator) CompleteLogin() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	dest := n.from
	if dest == "" || IsPublic(dest) {
		dest = DefaultLanding
	}
	n.from = ""
	n.applyLocked(dest)
	return n.location
}

func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *Navigator) Decision() Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decision
}

// RememberedDestination is the path that will be restored after login.
func (n *Navigator) RememberedDestination() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.from
}

func (n *Navigator) applyLocked(path string) Decision {
	if path == "" {
		path = DefaultLanding
	}
	if IsPublic(path) {
		n.location = path
		n.decision = Decision{Outcome: Render}
		return n.decision
	}

	d := Decide(n.status, path)
	switch d.Outcome {
	case Redirect:
		log.Debug().Str("from", path).Msg("redirecting to login")
		n.from = d.From
		n.location = d.To
	case Render, Loading:
		n.location = path
	}
	n.decision = d
	return d
}
