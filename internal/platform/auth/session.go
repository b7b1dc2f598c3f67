package auth

import (
	"errors"
	"fmt"
)

// State is a step of identity resolution.
type State int

const (
	StateUnresolved State = iota
	StateResolving
	StateResolved
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateAnonymous:
		return "anonymous"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var ErrInvalidTransition = errors.New("invalid session transition")

// Session tracks identity resolution for one caller:
//
//	Unresolved -> Resolving -> Resolved(identity) | Anonymous
//	Resolved -> Anonymous (sign-out)
//
// A Session is not safe for concurrent use.
type Session struct {
	state    State
	identity Identity
}

func NewSession() *Session {
	return &Session{state: StateUnresolved}
}

func (s *Session) State() State { return s.state }

// Begin marks the start of a provider lookup.
func (s *Session) Begin() error {
	if s.state != StateUnresolved {
		return s.invalid("begin")
	}
	s.state = StateResolving
	return nil
}

// Resolve records a successful lookup.
func (s *Session) Resolve(id Identity) error {
	if s.state != StateResolving {
		return s.invalid("resolve")
	}
	if id.Role != RoleAdmin && id.Role != RoleOperator {
		return fmt.Errorf("resolve: unknown role %q", id.Role)
	}
	s.identity = id
	s.state = StateResolved
	return nil
}

// Fail records that the provider reported no identity.
func (s *Session) Fail() error {
	if s.state != StateResolving {
		return s.invalid("fail")
	}
	s.state = StateAnonymous
	return nil
}

// SignOut drops a resolved identity.
func (s *Session) SignOut() error {
	if s.state != StateResolved {
		return s.invalid("sign out")
	}
	s.identity = Identity{}
	s.state = StateAnonymous
	return nil
}

// Context snapshots the session. Anything but Resolved yields Anonymous.
func (s *Session) Context() *Context {
	if s.state != StateResolved {
		return Anonymous()
	}
	return NewContext(s.identity)
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%s from %s: %w", op, s.state, ErrInvalidTransition)
}
