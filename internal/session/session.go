// Package session tracks the client's authentication state.
//
// Registering leaves the server holding a fresh session that the client
// immediately revokes, so the user ends up signed out and signs in
// explicitly.  The machine makes that window a state of its own:
// while a signup is pending, session notifications are ignored instead of
// being suppressed by a flag that something must remember to reset.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// State is the authentication state of a client.
type State string

const (
	SignedOut     State = "signed_out"
	PendingSignup State = "pending_signup"
	SignedIn      State = "signed_in"
)

// Outcome reports what an event did to the machine.
type Outcome int

const (
	Applied Outcome = iota
	Ignored
)

func (o Outcome) String() string {
	if o == Ignored {
		return "ignored"
	}
	return "applied"
}

// ErrInvalidTransition is returned for events the current state does not
// accept.  The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid session transition")

// Machine is safe for concurrent use.  The zero value is signed out.
type Machine struct {
	mu    sync.Mutex
	state State
	user  *model.User
}

// New returns a signed-out machine.
func New() *Machine { return &Machine{state: SignedOut} }

func (m *Machine) current() State {
	if m.state == "" {
		return SignedOut
	}
	return m.state
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

// User returns the signed-in user, or nil.
func (m *Machine) User() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// BeginSignup enters PendingSignup.  Only a signed-out client may sign up.
func (m *Machine) BeginSignup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.current(); s != SignedOut {
		return fmt.Errorf("%w: begin signup while %s", ErrInvalidTransition, s)
	}
	m.state = PendingSignup
	return nil
}

// SessionChanged applies a session notification: u signed in, or nil signed
// out.  It is ignored while a signup is pending.
func (m *Machine) SessionChanged(u *model.User) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current() == PendingSignup {
		return Ignored
	}
	if u == nil {
		m.state, m.user = SignedOut, nil
		return Applied
	}
	cp := *u
	m.state, m.user = SignedIn, &cp
	return Applied
}

// CompleteSignup ends a pending signup.  The account exists but the client is
// signed out.
func (m *Machine) CompleteSignup() error { return m.endSignup("complete") }

// AbortSignup ends a pending signup that failed.
func (m *Machine) AbortSignup() error { return m.endSignup("abort") }

func (m *Machine) endSignup(verb string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.current(); s != PendingSignup {
		return fmt.Errorf("%w: %s signup while %s", ErrInvalidTransition, verb, s)
	}
	m.state, m.user = SignedOut, nil
	return nil
}

// Logout signs the client out.  A pending signup must be completed or
// aborted instead.
func (m *Machine) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current() == PendingSignup {
		return fmt.Errorf("%w: logout while %s", ErrInvalidTransition, PendingSignup)
	}
	m.state, m.user = SignedOut, nil
	return nil
}
