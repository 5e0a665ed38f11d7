package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Policy is the externally loaded configuration surface the service
// consumes. It is read-only after construction.
type Policy struct {
	MinUsernameLen int
	MinSecretLen   int
	Directory      DirectoryPolicy
}

// DirectoryPolicy controls delegated directory logins.
type DirectoryPolicy struct {
	Enabled bool
	Suffix  string // e.g. "@corp"; stripped before delegating
	Group   string // required group for delegated logins
}

func (p Policy) validate() error {
	if p.MinUsernameLen < 1 {
		return errors.New("minimum username length must be at least 1")
	}
	if p.MinSecretLen < 1 {
		return errors.New("minimum secret length must be at least 1")
	}
	if p.Directory.Enabled {
		if strings.TrimSpace(p.Directory.Suffix) == "" {
			return errors.New("directory login enabled without a suffix")
		}
		if strings.TrimSpace(p.Directory.Group) == "" {
			return errors.New("directory login enabled without a required group")
		}
	}
	return nil
}

// DefaultPolicy returns the conservative defaults used when no explicit
// configuration is provided.
func DefaultPolicy() Policy {
	return Policy{MinUsernameLen: 3, MinSecretLen: 8}
}

func (p DirectoryPolicy) strip(username string) string {
	return strings.TrimSuffix(username, p.Suffix)
}

func (p DirectoryPolicy) applies(username string) bool {
	return p.Enabled && strings.HasSuffix(username, p.Suffix)
}

// String renders the policy for diagnostics without leaking anything
// sensitive (there is nothing sensitive in it, but keep it stable).
func (p Policy) String() string {
	return fmt.Sprintf("policy{username>=%d secret>=%d directory=%v}",
		p.MinUsernameLen, p.MinSecretLen, p.Directory.Enabled)
}
