// Package credential authenticates submitted username/password pairs
// against a principal store and yields the caller's identity and roles.
package credential

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords. One message for both keeps usernames unenumerable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrNotFound is returned by stores when a username has no record.
var ErrNotFound = errors.New("principal not found")

// Principal is an authenticated identity plus its granted roles.
type Principal struct {
	Username string
	Roles    []string
}

// HasRole reports flat membership; roles carry no hierarchy.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Record is a stored principal with its bcrypt password hash.
type Record struct {
	Username     string
	PasswordHash []byte
	Roles        []string
}

// Store looks up principal records by username. Implementations may be
// in-memory, file-backed or remote.
type Store interface {
	Lookup(ctx context.Context, username string) (Record, error)
}

// MemoryStore is a read-only in-memory principal store.
type MemoryStore struct {
	records map[string]Record
}

// NewMemoryStore builds a store from the given records.
func NewMemoryStore(records ...Record) *MemoryStore {
	m := make(map[string]Record, len(records))
	for _, rec := range records {
		m[rec.Username] = rec
	}
	return &MemoryStore{records: m}
}

// SeededStore returns a store with the development accounts: user/user
// holding USER and admin/admin holding USER and ADMIN.
func SeededStore() *MemoryStore {
	return NewMemoryStore(
		Record{Username: "user", PasswordHash: mustHash("user"), Roles: []string{"USER"}},
		Record{Username: "admin", PasswordHash: mustHash("admin"), Roles: []string{"USER", "ADMIN"}},
	)
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, username string) (Record, error) {
	rec, ok := s.records[username]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Verifier checks submitted credentials against a Store.
type Verifier struct {
	store Store
}

// NewVerifier constructs a Verifier backed by the given store.
func NewVerifier(store Store) *Verifier {
	return &Verifier{store: store}
}

// sink is a valid bcrypt hash of random material. Unknown usernames burn a
// compare against it so both failure paths cost one bcrypt verification.
var sink = mustHash("9f1c6c8be2a04d41a96d")

// Authenticate verifies the pair and returns the matching Principal. Every
// failure is ErrInvalidCredentials; callers learn nothing about which half
// was wrong.
func (v *Verifier) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	rec, err := v.store.Lookup(ctx, username)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(sink, []byte(password))
		return Principal{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}

	return Principal{Username: rec.Username, Roles: slices.Clone(rec.Roles)}, nil
}

// HashPassword produces a bcrypt hash suitable for a Record.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func mustHash(password string) []byte {
	hash, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
