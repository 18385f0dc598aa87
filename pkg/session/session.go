// Package session defines the session-store collaborator.
package session

import "context"

// Store resolves conversation scopes to session ids.
type Store interface {
	// FindByScope returns the session id for a scope, or "" when none exists.
	FindByScope(ctx context.Context, scope string) (string, error)
}
