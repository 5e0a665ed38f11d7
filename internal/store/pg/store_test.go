package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"gatekeep.org/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestFindIdentity(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, username, auth_kind").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "auth_kind", "secret_hash", "secret_salt", "created_at"}).
			AddRow("01J", "alice", "local", "$2a$08$hash", "$2a$08$salt", created))

	identity, err := store.FindIdentity(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindIdentity: %v", err)
	}
	if identity.Username != "alice" || identity.Kind != auth.KindLocal {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindIdentityNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, username, auth_kind").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "auth_kind", "secret_hash", "secret_salt", "created_at"}))

	if _, err := store.FindIdentity(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertIdentityUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into identities").
		WithArgs("01J", "alice", "local", "$2a$08$hash", "$2a$08$salt", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.InsertIdentity(context.Background(), &auth.Identity{
		ID:         "01J",
		Username:   "alice",
		Kind:       auth.KindLocal,
		SecretHash: "$2a$08$hash",
		SecretSalt: "$2a$08$salt",
	})
	if !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpsertToken(t *testing.T) {
	store, mock := newMockStore(t)
	until := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	issued := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("insert into session_tokens").
		WithArgs("01K", "alice", "cafe", "10.0.0.5", until, issued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertToken(context.Background(), &auth.Token{
		ID: "01K", Owner: "alice", Value: "cafe", ClientIP: "10.0.0.5",
		ValidUntil: until, IssuedAt: issued,
	})
	if err != nil {
		t.Fatalf("UpsertToken: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindTokenByValue(t *testing.T) {
	store, mock := newMockStore(t)
	until := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	issued := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("select id, owner, value, client_ip, valid_until, issued_at").
		WithArgs("cafe").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "value", "client_ip", "valid_until", "issued_at"}).
			AddRow("01K", "alice", "cafe", "10.0.0.5", until, issued))

	token, err := store.FindTokenByValue(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("FindTokenByValue: %v", err)
	}
	if token.Owner != "alice" || !token.ValidUntil.Equal(until) {
		t.Fatalf("unexpected token %+v", token)
	}
}

func TestPermissionsFor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select p.name").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("admin").AddRow("read"))

	names, err := store.PermissionsFor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("PermissionsFor: %v", err)
	}
	if len(names) != 2 || names[0] != "admin" || names[1] != "read" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestAtomicallyCommits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into identity_permissions").
		WithArgs("alice", "01P").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(tx auth.Store) error {
		return tx.AttachPermission(context.Background(), "alice", auth.Permission{ID: "01P", Name: "read"})
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAtomicallyRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Atomically(context.Background(), func(tx auth.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAtomicallyNested(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into identity_permissions").
		WithArgs("alice", "01P").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// A nested Atomically reuses the open transaction instead of starting
	// a second one.
	err := store.Atomically(context.Background(), func(tx auth.Store) error {
		return tx.Atomically(context.Background(), func(inner auth.Store) error {
			return inner.AttachPermission(context.Background(), "alice", auth.Permission{ID: "01P", Name: "read"})
		})
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
