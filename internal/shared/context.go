package shared

import "context"

// Principal describes the authenticated actor attached to a request after its
// bearer token and session have been validated.
type Principal struct {
	IdentityID int64
	SessionID  string
	Email      string
	Role       string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
