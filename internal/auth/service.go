package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gatekeep.org/internal/audit"
	"gatekeep.org/internal/ids"
	"gatekeep.org/internal/obs"
)

// invalidatedOn is the sentinel expiry written when a token is revoked.
var invalidatedOn = time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)

// Service is the credential and session authority. Holding a *Service is
// the initialization capability: New refuses to construct one from an
// invalid policy, so operations never re-check an "inited" flag.
type Service struct {
	store  Store
	dir    Directory
	policy Policy
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithDirectory plugs in the group-membership delegation adapter.
func WithDirectory(dir Directory) Option {
	return func(s *Service) { s.dir = dir }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New constructs the service handle.
func New(store Store, policy Policy, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNotInitialized)
	}
	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	s := &Service{store: store, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.Directory.Enabled && s.dir == nil {
		return nil, fmt.Errorf("%w: directory login enabled without an adapter", ErrNotInitialized)
	}
	return s, nil
}

// CreateIdentity provisions a new identity and returns its canonical
// username. An empty secret is only accepted for directory identities,
// which may have no local fallback. The lookup-then-insert runs in one
// store transaction so concurrent provisioning cannot race past the
// uniqueness check.
func (s *Service) CreateIdentity(ctx context.Context, username, secret string, kind AuthKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown auth kind %q", ErrInvalidArgument, kind)
	}
	if len(username) < s.policy.MinUsernameLen {
		return "", fmt.Errorf("%w: username shorter than %d characters", ErrInvalidArgument, s.policy.MinUsernameLen)
	}
	if secret == "" && kind != KindDirectory {
		return "", fmt.Errorf("%w: secret required for %s identities", ErrInvalidArgument, kind)
	}
	if secret != "" && kind != KindDirectory && len(secret) < s.policy.MinSecretLen {
		return "", fmt.Errorf("%w: secret shorter than %d characters", ErrInvalidArgument, s.policy.MinSecretLen)
	}
	if strings.Contains(username, "@") && kind != KindDirectory {
		return "", fmt.Errorf("%w: '@' in usernames is reserved for directory identities", ErrInvalidArgument)
	}

	identity := &Identity{
		ID:        ids.New(),
		Username:  username,
		Kind:      kind,
		CreatedAt: s.now().UTC(),
	}
	if secret != "" {
		hash, salt, err := hashSecret(secret)
		if err != nil {
			return "", err
		}
		identity.SecretHash = hash
		identity.SecretSalt = salt
	}

	err := s.store.Atomically(ctx, func(tx Store) error {
		switch _, err := tx.FindIdentity(ctx, username); {
		case err == nil:
			return ErrAlreadyExists
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return tx.InsertIdentity(ctx, identity)
	})
	if err != nil {
		return "", err
	}
	obs.IdentityCreated(string(kind))
	audit.LogEvent(ctx, "identity.create", map[string]any{
		"username":  identity.Username,
		"auth_kind": string(kind),
	})
	return identity.Username, nil
}

// auditLogin records an authentication decision in the audit trail.
func auditLogin(ctx context.Context, username, path string, ok bool) {
	event := "login.failure"
	if ok {
		event = "login.success"
	}
	audit.LogEvent(ctx, event, map[string]any{"username": username, "path": path})
}

// Authenticate decides whether the credential pair logs in, returning the
// canonical username on success. Wrong secrets, group non-membership and
// directory outages are normal negative outcomes (false, "", nil); a
// lookup miss with no directory fallback is ErrMissingIdentity.
func (s *Service) Authenticate(ctx context.Context, username, secret string) (bool, string, error) {
	identity, err := s.store.FindIdentity(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.directoryFirstLogin(ctx, username, secret)
	case err != nil:
		return false, "", err
	}

	switch identity.Kind {
	case KindDirectory:
		if !s.directoryReady() {
			return false, "", fmt.Errorf("%w: directory identity while directory login is disabled", ErrUnsupportedAuthKind)
		}
		member, derr := s.checkGroup(ctx, identity.Username, secret)
		if derr != nil {
			obs.Debugf("directory check for %q failed: %v", identity.Username, derr)
			obs.LoginResult("directory", "error")
			auditLogin(ctx, identity.Username, "directory", false)
			return false, "", nil
		}
		if !member {
			obs.LoginResult("directory", "denied")
			auditLogin(ctx, identity.Username, "directory", false)
			return false, "", nil
		}
		obs.LoginResult("directory", "ok")
		auditLogin(ctx, identity.Username, "directory", true)
		return true, identity.Username, nil
	case KindLocal:
		if verifySecret(identity.SecretHash, secret) {
			obs.LoginResult("local", "ok")
			auditLogin(ctx, identity.Username, "local", true)
			return true, identity.Username, nil
		}
		obs.LoginResult("local", "denied")
		auditLogin(ctx, identity.Username, "local", false)
		return false, "", nil
	default:
		return false, "", fmt.Errorf("%w: %q", ErrUnsupportedAuthKind, identity.Kind)
	}
}

func (s *Service) directoryReady() bool {
	return s.dir != nil && s.policy.Directory.Enabled
}

func (s *Service) checkGroup(ctx context.Context, username, secret string) (bool, error) {
	stripped := s.policy.Directory.strip(username)
	return s.dir.IsMemberOfGroup(ctx, s.policy.Directory.Group, stripped, secret)
}

// directoryFirstLogin provisions a directory identity on its first
// successful delegated login. The group check runs before any store
// transaction is opened.
func (s *Service) directoryFirstLogin(ctx context.Context, username, secret string) (bool, string, error) {
	if !s.directoryReady() || !s.policy.Directory.applies(username) {
		return false, "", ErrMissingIdentity
	}
	member, err := s.checkGroup(ctx, username, secret)
	if err != nil {
		obs.Debugf("directory check for %q failed: %v", username, err)
		obs.LoginResult("directory", "error")
		auditLogin(ctx, username, "directory", false)
		return false, "", nil
	}
	if !member {
		obs.LoginResult("directory", "denied")
		auditLogin(ctx, username, "directory", false)
		return false, "", nil
	}

	canonical, err := s.CreateIdentity(ctx, username, "", KindDirectory)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		// A concurrent first login provisioned the identity between our
		// lookup and the insert. The record exists and the directory has
		// already vouched for the secret, so this login still succeeds.
		obs.DirectoryProvisioned("raced")
		obs.LoginResult("directory", "ok")
		auditLogin(ctx, username, "directory", true)
		return true, username, nil
	case err != nil:
		obs.Debugf("lazy provisioning of %q failed: %v", username, err)
		obs.LoginResult("directory", "error")
		auditLogin(ctx, username, "directory", false)
		return false, "", nil
	}
	obs.DirectoryProvisioned("created")
	obs.LoginResult("directory", "ok")
	auditLogin(ctx, canonical, "directory", true)
	return true, canonical, nil
}

// IssueToken creates or replaces the bearer token for an identity, bound
// to the client address and valid through today+validDays. The identity
// holds at most one token: re-issuing overwrites the previous record
// inside the same transaction.
func (s *Service) IssueToken(ctx context.Context, username, clientIP string, validDays int) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(clientIP) == "" {
		return "", fmt.Errorf("%w: client ip is required", ErrInvalidArgument)
	}
	if validDays < 0 {
		return "", fmt.Errorf("%w: negative validity window", ErrInvalidArgument)
	}

	now := s.now().UTC()
	validUntil := dateOnly(now.AddDate(0, 0, validDays))
	value, err := deriveTokenValue(username, clientIP, validUntil)
	if err != nil {
		return "", err
	}

	err = s.store.Atomically(ctx, func(tx Store) error {
		if _, err := tx.FindIdentity(ctx, username); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: no identity %q to issue a token for", ErrInvalidArgument, username)
			}
			return err
		}
		token, err := tx.FindTokenByOwner(ctx, username)
		switch {
		case errors.Is(err, ErrNotFound):
			token = &Token{ID: ids.New(), Owner: username}
		case err != nil:
			return err
		}
		token.Value = value
		token.ClientIP = clientIP
		token.ValidUntil = validUntil
		token.IssuedAt = now
		return tx.UpsertToken(ctx, token)
	})
	if err != nil {
		return "", err
	}
	obs.TokenIssued()
	audit.LogEvent(ctx, "token.issue", map[string]any{
		"username":    username,
		"client_ip":   clientIP,
		"valid_until": validUntil.Format(dateLayout),
	})
	return value, nil
}

// VerifyToken checks a presented bearer token against the owner's current
// token record. Address mismatch, a stale value left over from an
// overwrite, and expiry all yield a negative check; only store faults are
// returned as errors.
func (s *Service) VerifyToken(ctx context.Context, value, clientIP string) (TokenCheck, error) {
	if value == "" || clientIP == "" {
		// Malformed arguments never reach the store.
		return TokenCheck{}, nil
	}
	var check TokenCheck
	err := s.store.Atomically(ctx, func(tx Store) error {
		token, err := tx.FindTokenByValue(ctx, value)
		if errors.Is(err, ErrNotFound) {
			obs.Debugf("token not found")
			return nil
		}
		if err != nil {
			return err
		}
		current, err := tx.FindTokenByOwner(ctx, token.Owner)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if clientIP != current.ClientIP || value != current.Value {
			return nil
		}
		if dateOnly(s.now()).After(dateOnly(current.ValidUntil)) {
			return nil
		}
		perms, err := tx.PermissionsFor(ctx, token.Owner)
		if err != nil {
			return err
		}
		if perms == nil {
			perms = []string{}
		}
		sort.Strings(perms)
		check = TokenCheck{OK: true, Permissions: perms, Username: token.Owner}
		return nil
	})
	if err != nil {
		return TokenCheck{}, err
	}
	obs.TokenVerified(check.OK)
	return check, nil
}

// InvalidateToken revokes a token by pushing its expiry into the past.
// It may only be called from the address the token is bound to.
// Invalidation is advisory cleanup: store faults are folded into the
// returned message instead of being propagated.
func (s *Service) InvalidateToken(ctx context.Context, value, clientIP string) (bool, string) {
	var (
		ok    bool
		msg   string
		owner string
	)
	err := s.store.Atomically(ctx, func(tx Store) error {
		token, err := tx.FindTokenByValue(ctx, value)
		if errors.Is(err, ErrNotFound) {
			msg = "token is unknown"
			return nil
		}
		if err != nil {
			return err
		}
		if token.ClientIP != clientIP {
			msg = "ip mismatch"
			return nil
		}
		token.ValidUntil = invalidatedOn
		if err := tx.UpsertToken(ctx, token); err != nil {
			return err
		}
		ok, msg, owner = true, "token invalidated", token.Owner
		return nil
	})
	if err != nil {
		return false, err.Error()
	}
	if ok {
		obs.TokenInvalidated()
		audit.LogEvent(ctx, "token.invalidate", map[string]any{
			"username":  owner,
			"client_ip": clientIP,
		})
	}
	return ok, msg
}

// ListPermissions returns every capability name in the catalog, sorted.
func (s *Service) ListPermissions(ctx context.Context) ([]string, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Grant attaches catalog permissions to an identity. Attaching is
// idempotent and names absent from the catalog are skipped. Negative
// outcomes are reported as a descriptive message, not an error.
func (s *Service) Grant(ctx context.Context, username string, names []string) (bool, string) {
	if len(names) == 0 {
		return false, "no permissions supplied"
	}
	if len(username) < s.policy.MinUsernameLen {
		return false, "username is too short or not given"
	}
	var granted []string
	err := s.store.Atomically(ctx, func(tx Store) error {
		if _, err := tx.FindIdentity(ctx, username); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrMissingIdentity
			}
			return err
		}
		for _, name := range names {
			perm, err := tx.FindPermission(ctx, name)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.AttachPermission(ctx, username, *perm); err != nil {
				return err
			}
			granted = append(granted, perm.Name)
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrMissingIdentity):
		return false, "identity not found"
	case err != nil:
		return false, err.Error()
	}
	obs.PermissionsGranted(len(granted))
	audit.LogEvent(ctx, "perm.grant", map[string]any{
		"username": username,
		"granted":  strings.Join(granted, ", "),
	})
	return true, "granted: " + strings.Join(granted, ", ")
}

// IdentityExists reports whether the username is provisioned. Absent or
// invalid usernames are false, never an error.
func (s *Service) IdentityExists(ctx context.Context, username string) bool {
	if username == "" {
		return false
	}
	_, err := s.store.FindIdentity(ctx, username)
	return err == nil
}

// ExtendedInfo gathers identity attributes, the current token if one
// exists, and the permission set. A missing identity yields three empty
// maps rather than an error.
func (s *Service) ExtendedInfo(ctx context.Context, username string) (ExtendedInfo, error) {
	info := ExtendedInfo{
		Identity:    map[string]string{},
		Token:       map[string]string{},
		Permissions: map[string]bool{},
	}
	identity, err := s.store.FindIdentity(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return info, nil
	}
	if err != nil {
		return ExtendedInfo{}, err
	}
	info.Identity["username"] = identity.Username
	info.Identity["auth_kind"] = string(identity.Kind)

	token, err := s.store.FindTokenByOwner(ctx, username)
	switch {
	case err == nil:
		info.Token["last_token_generation"] = token.IssuedAt.UTC().Format(time.RFC3339)
		info.Token["valid_until"] = token.ValidUntil.Format(dateLayout)
		info.Token["valid_for"] = token.ClientIP
		info.Token["token"] = token.Value
	case !errors.Is(err, ErrNotFound):
		return ExtendedInfo{}, err
	}

	perms, err := s.store.PermissionsFor(ctx, username)
	if err != nil {
		return ExtendedInfo{}, err
	}
	for _, name := range perms {
		info.Permissions[name] = true
	}
	return info, nil
}
