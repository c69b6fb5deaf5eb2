package authclient

import "time"

// SessionStatus enumerates the session lifecycle states.
type SessionStatus string

const (
	// StatusAnonymous means no usable token is present
	StatusAnonymous SessionStatus = "anonymous"
	// StatusAuthenticated means a token is present and its expiry is in the future
	StatusAuthenticated SessionStatus = "authenticated"
	// StatusExpired means expiry was detected; the next transition drops to anonymous
	StatusExpired SessionStatus = "expired"
)

// sessionTransitions is the legal status graph. Expiry is detected, never
// assumed, and always drains to anonymous. Self-transitions are handled as
// no-ops before this graph is consulted.
var sessionTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	StatusAnonymous: {
		StatusAuthenticated: {},
	},
	StatusAuthenticated: {
		StatusExpired:   {},
		StatusAnonymous: {},
	},
	StatusExpired: {
		StatusAnonymous: {},
	},
}

func canTransition(from, to SessionStatus) bool {
	targets, ok := sessionTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Session is an immutable snapshot of the live session: the token, its
// derived claims, the status, and the cached profile. Subscribers receive
// copies; mutating a snapshot never affects the state machine.
type Session struct {
	Token   string
	Claims  *Claims
	Status  SessionStatus
	Profile *UserProfile
}

// Anonymous reports whether the snapshot carries no session.
func (s Session) Anonymous() bool {
	return s.Status == StatusAnonymous
}

// Authenticated reports whether the snapshot is a live session.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Roles returns the role set of the snapshot, empty when anonymous.
func (s Session) Roles() []UserRole {
	if s.Claims == nil {
		return nil
	}
	return s.Claims.Roles()
}

// ExpiresAt returns the expiry of the snapshot's claims, zero when absent.
func (s Session) ExpiresAt() time.Time {
	if s.Claims == nil {
		return time.Time{}
	}
	return s.Claims.Expires()
}

func anonymousSession() Session {
	return Session{Status: StatusAnonymous}
}
