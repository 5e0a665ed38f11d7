package auth

import "context"

// Directory answers group-membership questions for delegated logins.
// Implementations talk to an external directory service; errors indicate
// transport or availability problems and are treated by the service as a
// negative authentication outcome, never propagated to login callers.
type Directory interface {
	IsMemberOfGroup(ctx context.Context, group, username, secret string) (bool, error)
}
