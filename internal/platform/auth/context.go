package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/pts/internal/platform/apperr"
)

// Role is the access level of a resolved identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// ParseRole accepts the wire names and the legacy stored "operador".
func ParseRole(s string) (Role, error) {
	switch s {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleOperator), "operador":
		return RoleOperator, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is the caller as reported by the identity provider, with the role
// read from the user profile.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}

// Context is the authorization view of one caller. It is an immutable value
// produced by a Session and passed explicitly into every store call.
type Context struct {
	state    State
	identity Identity
}

var anonymous = &Context{state: StateAnonymous}

// Anonymous returns a Context for a caller without a resolved identity.
func Anonymous() *Context { return anonymous }

// NewContext returns a resolved Context for id. Used by tests and the CLI;
// the HTTP path goes through a Session.
func NewContext(id Identity) *Context {
	return &Context{state: StateResolved, identity: id}
}

func (c *Context) State() State {
	if c == nil {
		return StateAnonymous
	}
	return c.state
}

// Authenticated reports whether the identity is resolved.
func (c *Context) Authenticated() bool {
	return c.State() == StateResolved
}

// Require fails with ErrUnauthorized unless the identity is resolved.
func (c *Context) Require() error {
	if !c.Authenticated() {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Identity returns the resolved identity, or the zero value.
func (c *Context) Identity() Identity {
	if !c.Authenticated() {
		return Identity{}
	}
	return c.identity
}

func (c *Context) UserID() uuid.UUID { return c.Identity().UserID }

func (c *Context) Role() Role { return c.Identity().Role }

// CanSeeAll is true iff the caller is an administrator.
func (c *Context) CanSeeAll() bool {
	return c.Authenticated() && c.identity.Role == RoleAdmin
}

// ScopeFilter reports whether a record owned by ownerUserID is visible.
func (c *Context) ScopeFilter(ownerUserID uuid.UUID) bool {
	if !c.Authenticated() {
		return false
	}
	return c.CanSeeAll() || ownerUserID == c.identity.UserID
}

// CanMutate applies the same ownership rule to writes.
func (c *Context) CanMutate(resourceOwnerID uuid.UUID) bool {
	return c.ScopeFilter(resourceOwnerID)
}

// OwnerFilter returns the owner id to push into list queries, or nil when the
// caller may see every owner.
func (c *Context) OwnerFilter() *uuid.UUID {
	if c.CanSeeAll() {
		return nil
	}
	id := c.Identity().UserID
	return &id
}

type contextKey string

const authContextKey contextKey = "auth_context"

// WithContext attaches ac to ctx.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext returns the Context attached by the middleware, or Anonymous.
func FromContext(ctx context.Context) *Context {
	if ac, ok := ctx.Value(authContextKey).(*Context); ok && ac != nil {
		return ac
	}
	return Anonymous()
}
