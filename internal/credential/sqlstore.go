package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash BLOB NOT NULL,
	roles         TEXT NOT NULL
);`

// SQLStore is a sqlite-backed principal store. It satisfies Store and is
// the swappable production alternative to MemoryStore.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (creating if necessary) the users database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open users db: %w", err)
	}

	if _, err := db.Exec(usersSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init users schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Lookup implements Store.
func (s *SQLStore) Lookup(ctx context.Context, username string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT username, password_hash, roles FROM users WHERE username = ?", username)

	var rec Record
	var roles string
	if err := row.Scan(&rec.Username, &rec.PasswordHash, &roles); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("lookup %q: %w", username, err)
	}

	if roles != "" {
		rec.Roles = strings.Split(roles, ",")
	}

	return rec, nil
}

// Seed inserts records that do not exist yet. Existing usernames are left
// untouched so redeployments never reset rotated passwords.
func (s *SQLStore) Seed(ctx context.Context, records ...Record) error {
	for _, rec := range records {
		_, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO users (username, password_hash, roles) VALUES (?, ?, ?)",
			rec.Username, rec.PasswordHash, strings.Join(rec.Roles, ","))
		if err != nil {
			return fmt.Errorf("seed %q: %w", rec.Username, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
