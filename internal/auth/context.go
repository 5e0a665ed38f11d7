package auth

import "context"

type usernameContextKey struct{}
type permissionsContextKey struct{}

// ContextWithUsername attaches the authenticated username to the context.
func ContextWithUsername(ctx context.Context, username string) context.Context {
	if username == "" {
		return ctx
	}
	return context.WithValue(ctx, usernameContextKey{}, username)
}

// UsernameFromContext extracts the authenticated username from the context.
func UsernameFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(usernameContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithPermissions stores a verified permission set in the context.
func ContextWithPermissions(ctx context.Context, names []string) context.Context {
	if len(names) == 0 {
		return ctx
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return context.WithValue(ctx, permissionsContextKey{}, set)
}

// ContextWithSession verifies a presented bearer token and, on a positive
// check, returns a context carrying the owner and the verified permission
// set for downstream authorization. A negative check returns the context
// unchanged.
func (s *Service) ContextWithSession(ctx context.Context, value, clientIP string) (context.Context, TokenCheck, error) {
	check, err := s.VerifyToken(ctx, value, clientIP)
	if err != nil || !check.OK {
		return ctx, check, err
	}
	ctx = ContextWithUsername(ctx, check.Username)
	ctx = ContextWithPermissions(ctx, check.Permissions)
	return ctx, check, nil
}

// HasPermission reports whether the context carries the named capability.
func HasPermission(ctx context.Context, name string) bool {
	if ctx == nil || name == "" {
		return false
	}
	set, ok := ctx.Value(permissionsContextKey{}).(map[string]struct{})
	if !ok {
		return false
	}
	_, ok = set[name]
	return ok
}
