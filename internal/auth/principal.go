package auth

import (
	"context"
	"strings"
)

// Principal is the resolved identity for one request: who is acting, with
// which global role, and whether an admin is impersonating them. It is
// created per request and discarded afterwards.
type Principal struct {
	MemberID string
	Role     Role
	// ImpersonatedBy carries the original actor's member ID when an admin
	// is browsing as this member. Impersonated sessions are read-only.
	ImpersonatedBy string
}

// IsZero reports whether no actor was resolved for the request.
func (p Principal) IsZero() bool {
	return strings.TrimSpace(p.MemberID) == ""
}

// Impersonated reports whether the session is an impersonation session.
func (p Principal) Impersonated() bool {
	return strings.TrimSpace(p.ImpersonatedBy) != ""
}

// ActorID returns the member accountable for the request: the original
// actor during impersonation, the member themselves otherwise. Audit
// entries record this value.
func (p Principal) ActorID() string {
	if p.Impersonated() {
		return p.ImpersonatedBy
	}
	return p.MemberID
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the resolved principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the resolved principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
