package auth

import (
	"context"
	"errors"
)

type contextKey string

const userKey contextKey = "user"

// WithUser attaches the caller to the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// GetUser retrieves the caller from the context.
func GetUser(ctx context.Context) (*User, error) {
	u, ok := ctx.Value(userKey).(*User)
	if !ok || u == nil {
		return nil, errors.New("no user in context")
	}
	return u, nil
}
