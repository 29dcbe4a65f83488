package middleware

import (
	"context"

	"github.com/provenlabs/opsledger/internal/domain"
)

type contextKey string

const ContextKeyUser contextKey = "user"

// UserFromContext returns the authenticated user placed by Auth.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(ContextKeyUser).(*domain.User)
	return u, ok
}

// WithUser attaches a user to the context. Exported for handler tests.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, u)
}
