// Package ldapdir implements the directory delegation contract against an
// LDAP server: a delegated login binds as the user and checks membership
// of the required group.
package ldapdir

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"gatekeep.org/internal/auth"
)

const defaultTimeout = 5 * time.Second

// Config describes the LDAP endpoint and how usernames map to DNs.
type Config struct {
	URL          string // ldap:// or ldaps://
	BaseDN       string // search base for group lookups
	UserDNFormat string // e.g. "uid=%s,ou=people,dc=example,dc=org"
	StartTLS     bool
	Timeout      time.Duration
}

// Directory answers group-membership questions over LDAP.
type Directory struct {
	cfg Config
}

var _ auth.Directory = (*Directory)(nil)

// New validates the configuration and returns the adapter.
func New(cfg Config) (*Directory, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ldapdir: server URL is required")
	}
	if strings.TrimSpace(cfg.BaseDN) == "" {
		return nil, errors.New("ldapdir: base DN is required")
	}
	if !strings.Contains(cfg.UserDNFormat, "%s") {
		return nil, errors.New("ldapdir: user DN format must contain %s")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Directory{cfg: cfg}, nil
}

// IsMemberOfGroup binds as the (already suffix-stripped) user with the
// supplied secret and searches for a group entry listing the user as a
// member. Invalid credentials are a clean non-membership answer; transport
// failures are returned as errors for the caller to treat as a negative
// outcome.
func (d *Directory) IsMemberOfGroup(ctx context.Context, group, username, secret string) (bool, error) {
	if username == "" || secret == "" {
		// An empty secret would degrade to an anonymous bind.
		return false, nil
	}

	conn, err := ldap.DialURL(d.cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: d.cfg.Timeout}))
	if err != nil {
		return false, fmt.Errorf("ldapdir: dial %s: %w", d.cfg.URL, err)
	}
	defer conn.Close()

	timeout := d.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	conn.SetTimeout(timeout)

	if d.cfg.StartTLS {
		host, err := serverName(d.cfg.URL)
		if err != nil {
			return false, err
		}
		if err := conn.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return false, fmt.Errorf("ldapdir: starttls: %w", err)
		}
	}

	userDN := fmt.Sprintf(d.cfg.UserDNFormat, ldap.EscapeDN(username))
	if err := conn.Bind(userDN, secret); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return false, nil
		}
		return false, fmt.Errorf("ldapdir: bind %s: %w", userDN, err)
	}

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(&(|(objectClass=groupOfNames)(objectClass=group))(cn=%s)(|(member=%s)(uniqueMember=%s)))",
			ldap.EscapeFilter(group), ldap.EscapeFilter(userDN), ldap.EscapeFilter(userDN)),
		[]string{"cn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return false, nil
		}
		return false, fmt.Errorf("ldapdir: search group %q: %w", group, err)
	}
	return len(res.Entries) > 0, nil
}

func serverName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("ldapdir: parse url: %w", err)
	}
	return u.Hostname(), nil
}
