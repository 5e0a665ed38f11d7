// Package pg implements the credential store contract on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gatekeep.org/internal/auth"
)

const pgErrUniqueViolation = "23505"

// Store implements auth.Store over a PostgreSQL connection pool. A Store
// returned inside Atomically is bound to a single transaction.
type Store struct {
	db *sql.DB
	q  querier
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ auth.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for short
// credential transactions.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the pool for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Atomically runs fn against a transaction-bound store. Nested calls
// reuse the open transaction.
func (s *Store) Atomically(ctx context.Context, fn func(tx auth.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FindIdentity(ctx context.Context, username string) (*auth.Identity, error) {
	row := s.q.QueryRowContext(ctx, `
		select id, username, auth_kind, coalesce(secret_hash, ''), coalesce(secret_salt, ''), created_at
		from identities
		where username = $1
	`, username)
	var identity auth.Identity
	var kind string
	if err := row.Scan(&identity.ID, &identity.Username, &kind, &identity.SecretHash, &identity.SecretSalt, &identity.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	identity.Kind = auth.AuthKind(kind)
	return &identity, nil
}

func (s *Store) InsertIdentity(ctx context.Context, identity *auth.Identity) error {
	_, err := s.q.ExecContext(ctx, `
		insert into identities (id, username, auth_kind, secret_hash, secret_salt, created_at)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6)
	`, identity.ID, identity.Username, string(identity.Kind), identity.SecretHash, identity.SecretSalt, identity.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.ErrAlreadyExists
	}
	return err
}

func (s *Store) FindTokenByValue(ctx context.Context, value string) (*auth.Token, error) {
	return s.findToken(ctx, `value = $1`, value)
}

func (s *Store) FindTokenByOwner(ctx context.Context, username string) (*auth.Token, error) {
	return s.findToken(ctx, `owner = $1`, username)
}

func (s *Store) findToken(ctx context.Context, where string, arg any) (*auth.Token, error) {
	row := s.q.QueryRowContext(ctx, `
		select id, owner, value, client_ip, valid_until, issued_at
		from session_tokens
		where `+where, arg)
	var token auth.Token
	if err := row.Scan(&token.ID, &token.Owner, &token.Value, &token.ClientIP, &token.ValidUntil, &token.IssuedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// UpsertToken enforces the one-token-per-identity invariant through the
// unique owner constraint.
func (s *Store) UpsertToken(ctx context.Context, token *auth.Token) error {
	_, err := s.q.ExecContext(ctx, `
		insert into session_tokens (id, owner, value, client_ip, valid_until, issued_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (owner) do update
		set value = excluded.value,
		    client_ip = excluded.client_ip,
		    valid_until = excluded.valid_until,
		    issued_at = excluded.issued_at
	`, token.ID, token.Owner, token.Value, token.ClientIP, token.ValidUntil, token.IssuedAt)
	return err
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.q.QueryContext(ctx, `
		select id, name, created_at from permissions order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *Store) FindPermission(ctx context.Context, name string) (*auth.Permission, error) {
	row := s.q.QueryRowContext(ctx, `
		select id, name, created_at from permissions where name = $1
	`, name)
	var p auth.Permission
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AttachPermission is idempotent: re-granting an existing permission is a
// no-op.
func (s *Store) AttachPermission(ctx context.Context, username string, perm auth.Permission) error {
	_, err := s.q.ExecContext(ctx, `
		insert into identity_permissions (identity_username, permission_id)
		values ($1, $2)
		on conflict do nothing
	`, username, perm.ID)
	return err
}

func (s *Store) PermissionsFor(ctx context.Context, username string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		select p.name
		from permissions p
		join identity_permissions ip on ip.permission_id = p.id
		where ip.identity_username = $1
		order by p.name
	`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
