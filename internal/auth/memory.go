package auth

import (
	"context"
	"sync"

	"gatekeep.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Intended
// for tests and single-node embedding; Atomically serializes callers but
// does not roll back partial mutations on error, which the service never
// relies on (each transaction performs at most one write besides the
// idempotent permission attach).
type InMemory struct {
	mu   sync.Mutex
	data memoryData
}

type memoryData struct {
	identities map[string]*Identity           // username -> identity
	tokens     map[string]*Token              // owner username -> token
	catalog    map[string]*Permission         // name -> permission
	grants     map[string]map[string]struct{} // username -> permission names
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		data: memoryData{
			identities: make(map[string]*Identity),
			tokens:     make(map[string]*Token),
			catalog:    make(map[string]*Permission),
			grants:     make(map[string]map[string]struct{}),
		},
	}
}

var _ Store = (*InMemory)(nil)

// SeedCatalog loads capability names into the permission catalog, which is
// normally managed externally.
func (s *InMemory) SeedCatalog(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if _, ok := s.data.catalog[name]; ok {
			continue
		}
		s.data.catalog[name] = &Permission{ID: ids.New(), Name: name}
	}
}

func (s *InMemory) FindIdentity(ctx context.Context, username string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.findIdentity(username)
}

func (s *InMemory) InsertIdentity(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.insertIdentity(identity)
}

func (s *InMemory) FindTokenByValue(ctx context.Context, value string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.findTokenByValue(value)
}

func (s *InMemory) FindTokenByOwner(ctx context.Context, username string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.findTokenByOwner(username)
}

func (s *InMemory) UpsertToken(ctx context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.upsertToken(token)
}

func (s *InMemory) ListPermissions(ctx context.Context) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listPermissions()
}

func (s *InMemory) FindPermission(ctx context.Context, name string) (*Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.findPermission(name)
}

func (s *InMemory) AttachPermission(ctx context.Context, username string, perm Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.attachPermission(username, perm)
}

func (s *InMemory) PermissionsFor(ctx context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.permissionsFor(username)
}

// Atomically holds the store lock for the duration of fn, giving the
// caller an isolated view equivalent to a serializable transaction.
func (s *InMemory) Atomically(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryView{data: &s.data})
}

// memoryView is the transaction-bound face of InMemory: same data, no
// locking, because Atomically already holds the store lock.
type memoryView struct {
	data *memoryData
}

var _ Store = (*memoryView)(nil)

func (v *memoryView) FindIdentity(ctx context.Context, username string) (*Identity, error) {
	return v.data.findIdentity(username)
}

func (v *memoryView) InsertIdentity(ctx context.Context, identity *Identity) error {
	return v.data.insertIdentity(identity)
}

func (v *memoryView) FindTokenByValue(ctx context.Context, value string) (*Token, error) {
	return v.data.findTokenByValue(value)
}

func (v *memoryView) FindTokenByOwner(ctx context.Context, username string) (*Token, error) {
	return v.data.findTokenByOwner(username)
}

func (v *memoryView) UpsertToken(ctx context.Context, token *Token) error {
	return v.data.upsertToken(token)
}

func (v *memoryView) ListPermissions(ctx context.Context) ([]Permission, error) {
	return v.data.listPermissions()
}

func (v *memoryView) FindPermission(ctx context.Context, name string) (*Permission, error) {
	return v.data.findPermission(name)
}

func (v *memoryView) AttachPermission(ctx context.Context, username string, perm Permission) error {
	return v.data.attachPermission(username, perm)
}

func (v *memoryView) PermissionsFor(ctx context.Context, username string) ([]string, error) {
	return v.data.permissionsFor(username)
}

// Atomically inside an open transaction just reuses it.
func (v *memoryView) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return fn(v)
}

func (d *memoryData) findIdentity(username string) (*Identity, error) {
	identity, ok := d.identities[username]
	if !ok {
		return nil, ErrNotFound
	}
	out := *identity
	return &out, nil
}

func (d *memoryData) insertIdentity(identity *Identity) error {
	if _, ok := d.identities[identity.Username]; ok {
		return ErrAlreadyExists
	}
	copied := *identity
	d.identities[identity.Username] = &copied
	return nil
}

func (d *memoryData) findTokenByValue(value string) (*Token, error) {
	for _, token := range d.tokens {
		if token.Value == value {
			out := *token
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memoryData) findTokenByOwner(username string) (*Token, error) {
	token, ok := d.tokens[username]
	if !ok {
		return nil, ErrNotFound
	}
	out := *token
	return &out, nil
}

func (d *memoryData) upsertToken(token *Token) error {
	copied := *token
	d.tokens[token.Owner] = &copied
	return nil
}

func (d *memoryData) listPermissions() ([]Permission, error) {
	out := make([]Permission, 0, len(d.catalog))
	for _, p := range d.catalog {
		out = append(out, *p)
	}
	return out, nil
}

func (d *memoryData) findPermission(name string) (*Permission, error) {
	perm, ok := d.catalog[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := *perm
	return &out, nil
}

func (d *memoryData) attachPermission(username string, perm Permission) error {
	set, ok := d.grants[username]
	if !ok {
		set = make(map[string]struct{})
		d.grants[username] = set
	}
	set[perm.Name] = struct{}{}
	return nil
}

func (d *memoryData) permissionsFor(username string) ([]string, error) {
	set := d.grants[username]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out, nil
}
