// Package identity carries the authenticated principal of one request.
//
// The identity travels only in the request's context.Context. It is created
// by the authentication middleware after a token verifies and is gone when
// the request's context is.
package identity

import "context"

type contextKey struct{}

// Identity is the principal resolved for a request. Treat it as read-only.
type Identity struct {
	Username string
	Roles    []string
	Active   bool
}

// New builds an Identity over a copy of roles.
func New(username string, roles []string, active bool) *Identity {
	r := make([]string, len(roles))
	copy(r, roles)
	return &Identity{Username: username, Roles: r, Active: active}
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewContext returns a child of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
