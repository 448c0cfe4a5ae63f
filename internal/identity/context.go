package identity

import (
	"context"
	"errors"
)

type contextKey string

const callerKey contextKey = "mlem-caller-id"

// ErrNoCaller is returned when no authenticated caller is attached to the context.
var ErrNoCaller = errors.New("no authenticated caller in context")

// WithCaller returns a context carrying the authenticated caller's user ID.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey, userID)
}

// CallerID returns the authenticated caller's user ID from the context.
func CallerID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(callerKey).(string)
	if !ok || id == "" {
		return "", ErrNoCaller
	}
	return id, nil
}
