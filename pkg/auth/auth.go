// Package auth implements the trivial credential-match lookup backing the
// login endpoint. It is deliberately minimal: no sessions, no tokens.
package auth

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// User is an authenticated account.
type User struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists credentials in a local sqlite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (and initializes) the credential database.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CreateUser registers a new account. Registering an existing username
// fails.
func (s *Store) CreateUser(username, password, displayName string) error {
	_, err := s.db.Exec(
		`INSERT INTO users (username, password_hash, display_name) VALUES (?, ?, ?)`,
		username, hashPassword(password), displayName)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", username, err)
	}
	s.logger.Info("user created", zap.String("username", username))
	return nil
}

// EnsureUser creates the account when it does not already exist.
func (s *Store) EnsureUser(username, password, displayName string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO users (username, password_hash, display_name) VALUES (?, ?, ?)`,
		username, hashPassword(password), displayName)
	if err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", username, err)
	}
	return nil
}

// Authenticate checks a username/password pair. A wrong pair returns
// (nil, nil), not an error.
func (s *Store) Authenticate(username, password string) (*User, error) {
	row := s.db.QueryRow(
		`SELECT username, display_name, created_at FROM users WHERE username = ? AND password_hash = ?`,
		username, hashPassword(password))

	var u User
	if err := row.Scan(&u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &u, nil
}
