// Package auth implements the shared-password gate and its session store.
// One password covers the whole dashboard; a successful login mints a token
// valid for 24 hours.
package auth

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SessionTTL is how long a login stays valid.
const SessionTTL = 24 * time.Hour

var (
	// ErrBadPassword is returned for a login attempt with the wrong password.
	ErrBadPassword = errors.New("invalid password")
	// ErrInvalidSession covers unknown and expired tokens alike.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Store manages the sessions SQLite table.
type Store struct {
	db       *sql.DB
	password string
	now      func() time.Time
}

// OpenStore opens (or creates) the session database at path. password is the
// shared dashboard password; an empty password disables login entirely.
func OpenStore(path, password string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS sessions (
		token       TEXT PRIMARY KEY,
		created_at  INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &Store{db: db, password: password, now: time.Now}, nil
}

// Close closes the SQLite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Login checks the shared password and mints a session token.
func (s *Store) Login(password string) (string, time.Time, error) {
	if s.password == "" {
		return "", time.Time{}, fmt.Errorf("login disabled: no password configured")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", time.Time{}, ErrBadPassword
	}

	token := uuid.NewString()
	now := s.now()
	expires := now.Add(SessionTTL)
	_, err := s.db.Exec(
		`INSERT INTO sessions (token, created_at, expires_at) VALUES (?, ?, ?)`,
		token, now.Unix(), expires.Unix(),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	return token, expires, nil
}

// Validate checks that a token exists and has not expired.
func (s *Store) Validate(token string) error {
	if token == "" {
		return ErrInvalidSession
	}

	var expiresAt int64
	err := s.db.QueryRow(`SELECT expires_at FROM sessions WHERE token = ?`, token).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidSession
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if s.now().Unix() >= expiresAt {
		return ErrInvalidSession
	}
	return nil
}

// Logout removes a session token. Unknown tokens are not an error.
func (s *Store) Logout(token string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (s *Store) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
