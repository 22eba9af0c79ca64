// Package auth implements certificate-fingerprint user lookup, JWT session
// issuance, and invite-code onboarding, per SPEC_FULL.md §4.7, grounded on
// original_source's crates/server/src/auth/{users,session,invite}.rs.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a lookup matches no row.
var ErrUserNotFound = errors.New("auth: user not found")

// User mirrors original_source's users table row.
type User struct {
	ID              string
	Username        string
	CertFingerprint string
	CreatedAt       time.Time
	LastLogin       *time.Time
	IsAdmin         bool
}

// UserStore is a SQLite-backed CRUD layer over the users table, grounded on
// auth/users.rs's UserManager (schema, method surface) but using
// database/sql over modernc.org/sqlite instead of rusqlite.
type UserStore struct {
	db *sql.DB
}

// NewUserStore wraps an already-migrated *sql.DB (see internal/store.Open).
func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db} }

// CreateUser inserts a new user, generating its ID.
func (s *UserStore) CreateUser(username string, isAdmin bool) (*User, error) {
	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now(),
		IsAdmin:   isAdmin,
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, created_at, is_admin) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.CreatedAt.Unix(), boolToInt(u.IsAdmin),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return u, nil
}

// GetUser looks up a user by ID.
func (s *UserStore) GetUser(id string) (*User, error) {
	return s.scanOne(`SELECT id, username, cert_fingerprint, created_at, last_login, is_admin FROM users WHERE id = ?`, id)
}

// GetUserByUsername looks up a user by username.
func (s *UserStore) GetUserByUsername(username string) (*User, error) {
	return s.scanOne(`SELECT id, username, cert_fingerprint, created_at, last_login, is_admin FROM users WHERE username = ?`, username)
}

// GetUserByFingerprint looks up a user by client-certificate SHA-256
// fingerprint, the primary authentication path (spec.md §4.7).
func (s *UserStore) GetUserByFingerprint(fingerprint string) (*User, error) {
	return s.scanOne(`SELECT id, username, cert_fingerprint, created_at, last_login, is_admin FROM users WHERE cert_fingerprint = ?`, fingerprint)
}

// SetUserFingerprint binds a certificate fingerprint to a user (invite
// redemption, spec.md §4.7).
func (s *UserStore) SetUserFingerprint(userID, fingerprint string) error {
	res, err := s.db.Exec(`UPDATE users SET cert_fingerprint = ? WHERE id = ?`, fingerprint, userID)
	if err != nil {
		return fmt.Errorf("auth: set fingerprint: %w", err)
	}
	return checkRowsAffected(res)
}

// UpdateLastLogin stamps the current time onto a user's last_login.
func (s *UserStore) UpdateLastLogin(userID string) error {
	_, err := s.db.Exec(`UPDATE users SET last_login = ? WHERE id = ?`, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("auth: update last login: %w", err)
	}
	return nil
}

// DeleteUser removes a user row.
func (s *UserStore) DeleteUser(id string) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("auth: delete user: %w", err)
	}
	return checkRowsAffected(res)
}

// ListUsers returns every user, ordered by creation time.
func (s *UserStore) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, username, cert_fingerprint, created_at, last_login, is_admin FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserCount returns the total number of registered users.
func (s *UserStore) UserCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("auth: count users: %w", err)
	}
	return n, nil
}

// IsSingleUserMode reports whether exactly one user is registered, in which
// case the server may skip invite-based onboarding entirely.
func (s *UserStore) IsSingleUserMode() (bool, error) {
	n, err := s.UserCount()
	return n == 1, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(r rowScanner) (User, error) {
	var u User
	var fingerprint, lastLogin sql.NullString
	var lastLoginUnix sql.NullInt64
	var createdAt int64
	var isAdmin int
	if err := r.Scan(&u.ID, &u.Username, &fingerprint, &createdAt, &lastLoginUnix, &isAdmin); err != nil {
		return User{}, fmt.Errorf("auth: scan user: %w", err)
	}
	u.CertFingerprint = fingerprint.String
	u.CreatedAt = time.Unix(createdAt, 0)
	u.IsAdmin = isAdmin != 0
	if lastLoginUnix.Valid {
		t := time.Unix(lastLoginUnix.Int64, 0)
		u.LastLogin = &t
	}
	_ = lastLogin
	return u, nil
}

func (s *UserStore) scanOne(query string, arg interface{}) (*User, error) {
	row := s.db.QueryRow(query, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("auth: rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
