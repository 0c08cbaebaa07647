// Package session persists the login credential and the last-known user id.
// Nothing else survives a process restart; all chat state is re-derived
// from the backend after reconnecting.
package session

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	keyCredential = "session_cookie"
	keyUserID     = "user_id"
)

// Store is a small durable key-value table. It is safe for concurrent
// reads; login/logout writes are serialized by the sync repository.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the store at path. Use ":memory:"
// for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("creating session table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveCredential stores the session cookie captured from the OAuth callback.
func (s *Store) SaveCredential(credential string) error {
	return s.set(keyCredential, credential)
}

// Credential returns the stored session cookie, or "" when logged out.
func (s *Store) Credential() (string, error) {
	return s.get(keyCredential)
}

// SaveUserID caches the authenticated user's id for quick access.
func (s *Store) SaveUserID(id string) error {
	return s.set(keyUserID, id)
}

// UserID returns the cached user id, or "" when none is stored.
func (s *Store) UserID() (string, error) {
	return s.get(keyUserID)
}

// HasSession reports whether a credential is stored.
func (s *Store) HasSession() bool {
	cred, err := s.Credential()
	return err == nil && cred != ""
}

// Clear removes all session data. Called on logout.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM session`); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Expired reports whether a credential is a JWT whose exp claim has passed.
// The signature is not checked here (the server owns verification); this
// only lets callers fail fast instead of sending a request that will 401.
// Opaque, non-JWT credentials are never reported as expired.
func Expired(credential string) bool {
	token := credential
	// Cookie-shaped credential: "alphachat.sid=<value>; Path=/; ..."
	if _, value, ok := strings.Cut(credential, "="); ok {
		token = value
		if semi := strings.IndexByte(token, ';'); semi >= 0 {
			token = token[:semi]
		}
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
