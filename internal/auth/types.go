package auth

import "time"

// AuthKind selects how an identity proves its credentials. The set is
// closed: switches over it must be exhaustive so a new kind is a
// compile-time-visible change.
type AuthKind string

const (
	KindLocal     AuthKind = "local"
	KindDirectory AuthKind = "directory"
)

// Valid reports whether the kind is a member of the closed set.
func (k AuthKind) Valid() bool {
	switch k {
	case KindLocal, KindDirectory:
		return true
	}
	return false
}

// Identity is a provisioned user record. Kind is fixed at creation time.
type Identity struct {
	ID         string
	Username   string
	Kind       AuthKind
	SecretHash string // full bcrypt digest; empty when no local secret exists
	SecretSalt string // bcrypt cost+salt prefix of the digest
	CreatedAt  time.Time
}

// Token is a bearer session credential bound to a client address.
// At most one token exists per identity at any time.
type Token struct {
	ID         string
	Owner      string // username of the owning identity
	Value      string // hex-encoded bcrypt digest presented by the bearer
	ClientIP   string
	ValidUntil time.Time // day granularity; invalid strictly after this date
	IssuedAt   time.Time
}

// Permission is a named capability from the externally managed catalog.
type Permission struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// TokenCheck is the outcome of verifying a bearer token.
type TokenCheck struct {
	OK          bool
	Permissions []string // lexicographically sorted
	Username    string
}

// ExtendedInfo describes everything known about an identity: its
// attributes, its current token if one exists, and its permission set.
// All three maps are empty (never nil) for a missing identity.
type ExtendedInfo struct {
	Identity    map[string]string
	Token       map[string]string
	Permissions map[string]bool
}
