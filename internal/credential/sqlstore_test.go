package credential

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()

	store, err := OpenSQLStore(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLStoreSeedAndLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	hash, err := HashPassword("admin")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	rec := Record{Username: "admin", PasswordHash: hash, Roles: []string{"USER", "ADMIN"}}
	if err := store.Seed(ctx, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := store.Lookup(ctx, "admin")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Username != "admin" {
		t.Fatalf("unexpected username: %s", got.Username)
	}
	if len(got.Roles) != 2 || got.Roles[0] != "USER" || got.Roles[1] != "ADMIN" {
		t.Fatalf("unexpected roles: %#v", got.Roles)
	}
}

func TestSQLStoreSeedDoesNotOverwrite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	original, err := HashPassword("first")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Seed(ctx, Record{Username: "user", PasswordHash: original, Roles: []string{"USER"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	replacement, err := HashPassword("second")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Seed(ctx, Record{Username: "user", PasswordHash: replacement, Roles: []string{"ADMIN"}}); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	got, err := store.Lookup(ctx, "user")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "USER" {
		t.Fatalf("seed overwrote existing record: %#v", got.Roles)
	}
}

func TestSQLStoreLookupUnknown(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Lookup(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStoreAuthenticates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Seed(ctx, Record{Username: "carol", PasswordHash: hash, Roles: []string{"USER"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	verifier := NewVerifier(store)

	principal, err := verifier.Authenticate(ctx, "carol", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal.Username != "carol" || !principal.HasRole("USER") {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	if _, err := verifier.Authenticate(ctx, "carol", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
