// internal/common/auth/context.go
package auth

import (
	"context"

	"loan-origination/internal/models"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   models.Role
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// Can reports whether the caller holds right.
func (p Principal) Can(right string) bool { return p.Role.HasRight(right) }

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
