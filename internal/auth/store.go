package auth

import "context"

// Store describes persistence operations required by the credential core.
// Lookups return ErrNotFound for absent records; InsertIdentity returns
// ErrAlreadyExists on a username collision.
type Store interface {
	FindIdentity(ctx context.Context, username string) (*Identity, error)
	InsertIdentity(ctx context.Context, identity *Identity) error

	FindTokenByValue(ctx context.Context, value string) (*Token, error)
	FindTokenByOwner(ctx context.Context, username string) (*Token, error)
	UpsertToken(ctx context.Context, token *Token) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermission(ctx context.Context, name string) (*Permission, error)
	AttachPermission(ctx context.Context, username string, perm Permission) error
	PermissionsFor(ctx context.Context, username string) ([]string, error)

	// Atomically runs fn against a store bound to a single transaction.
	// Every lookup-then-mutate sequence in the service goes through here
	// so concurrent callers cannot lose updates. fn returning an error
	// aborts the transaction.
	Atomically(ctx context.Context, fn func(tx Store) error) error
}
