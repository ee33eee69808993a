// Package auth carries the authenticated caller through request contexts
// and signs impersonation tokens.
package auth

import (
	"context"

	"github.com/dukerupert/tenantry/internal/model"
)

type contextKey struct{}

// AuthContext describes who a request runs as. When an admin impersonates a
// tenant, UserID and Role are the tenant's and ImpersonatorID is the admin.
type AuthContext struct {
	UserID         int64
	Role           string
	SessionID      int64
	ImpersonatorID int64
}

func (ac AuthContext) IsAdmin() bool { return ac.Role == model.RoleAdmin }

// Impersonating reports whether an admin is acting as this user.
func (ac AuthContext) Impersonating() bool { return ac.ImpersonatorID != 0 }

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// UserID returns the effective user of ctx, or 0 outside an authenticated
// request.
func UserID(ctx context.Context) int64 {
	ac, _ := FromContext(ctx)
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, _ := FromContext(ctx)
	return ac.IsAdmin()
}
