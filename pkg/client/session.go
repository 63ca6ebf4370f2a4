// Package client is the Go consumer of the DevBook auth API: a thin
// HTTP client plus an explicit session state container. The container
// mirrors the server-observable authentication states so a presentation
// layer can render purely off the current snapshot: unauthenticated
// shows a login form, a pending second factor shows the challenge,
// authenticated shows content, and an active setup shows the enrollment
// wizard.
package client

import (
	"sync"

	"github.com/sksah1842/devbook/pkg/user"
)

// AuthStatus is the tri-state authentication flag: Unknown until the
// first load attempt settles, then Authenticated or Unauthenticated.
type AuthStatus int

const (
	AuthUnknown AuthStatus = iota
	AuthAuthenticated
	AuthUnauthenticated
)

// SetupData holds the enrollment artifacts between setup initiation and
// verify-or-cancel.
type SetupData struct {
	Secret         string
	QRCode         string
	ManualEntryKey string
}

// SessionState is a snapshot of the client session.
//
// Invariants: Requires2FA is true exactly when TempToken is non-empty,
// and TwoFASetup is non-nil only while the enrollment wizard is active.
type SessionState struct {
	Token       string
	Status      AuthStatus
	User        *user.SanitizedUser
	Requires2FA bool
	TempToken   string
	TwoFASetup  *SetupData
}

// Signal is a state transition applied to the session store. Signals
// are the only way state changes; consumers read snapshots.
type Signal interface {
	apply(s *SessionState)
}

// LoginSucceeded records a full session token. Any pending second
// factor is resolved, so the challenge state clears with it.
type LoginSucceeded struct {
	Token string
}

func (sig LoginSucceeded) apply(s *SessionState) {
	s.Token = sig.Token
	s.Status = AuthAuthenticated
	s.Requires2FA = false
	s.TempToken = ""
}

// UserLoaded records the authenticated user's record.
type UserLoaded struct {
	User user.SanitizedUser
}

func (sig UserLoaded) apply(s *SessionState) {
	s.Status = AuthAuthenticated
	u := sig.User
	s.User = &u
}

// SecondFactorRequired records an interrupted login: the password step
// passed and the server handed back a pending token.
type SecondFactorRequired struct {
	TempToken string
}

func (sig SecondFactorRequired) apply(s *SessionState) {
	s.Requires2FA = true
	s.TempToken = sig.TempToken
}

// SetupDataReceived opens the enrollment wizard with fresh artifacts.
type SetupDataReceived struct {
	Setup SetupData
}

func (sig SetupDataReceived) apply(s *SessionState) {
	setup := sig.Setup
	s.TwoFASetup = &setup
}

// SetupCleared closes the enrollment wizard: successful verify, cancel
// and disable all collapse to the same state.
type SetupCleared struct{}

func (SetupCleared) apply(s *SessionState) {
	s.TwoFASetup = nil
}

// SessionCleared wipes everything back to unauthenticated. Logout, auth
// errors and account deletion are indistinguishable afterwards.
type SessionCleared struct{}

func (SessionCleared) apply(s *SessionState) {
	*s = SessionState{Status: AuthUnauthenticated}
}

// SessionStore holds the session state and applies signals atomically.
// Reads return copies, so a snapshot never changes under the reader.
type SessionStore struct {
	mu          sync.RWMutex
	state       SessionState
	subscribers []func(SessionState)
}

// NewSessionStore creates a store in the Unknown state.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		state: SessionState{Status: AuthUnknown},
	}
}

// Dispatch applies a signal and notifies subscribers with the resulting
// snapshot.
func (st *SessionStore) Dispatch(sig Signal) {
	st.mu.Lock()
	sig.apply(&st.state)
	snapshot := st.state
	subscribers := st.subscribers
	st.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

// State returns the current snapshot.
func (st *SessionStore) State() SessionState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// Subscribe registers a callback invoked after every dispatch.
func (st *SessionStore) Subscribe(fn func(SessionState)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.subscribers = append(st.subscribers, fn)
}
