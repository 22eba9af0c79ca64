package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session ID has no live entry.
var ErrSessionNotFound = errors.New("auth: session not found")

// ErrInvalidToken is returned when JWT validation fails for any reason
// (bad signature, expired, malformed).
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload, grounded on auth/session.rs's Claims struct.
type Claims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Session is the server-side record for an active transport connection,
// tracking the currently-selected tool and sync mode (spec.md §3).
type Session struct {
	ID          string
	UserID      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CurrentTool string
	SyncMode    string
}

// SessionManager issues/validates JWTs and tracks live sessions in memory,
// grounded on auth/session.rs's SessionManager (HashMap<Uuid,Session> under
// an RwLock — generalized here to sync.RWMutex over a map[string]*Session).
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	jwtSecret   []byte
	expiryHours int
}

// NewSessionManager builds a manager with the given signing secret and
// session lifetime.
func NewSessionManager(jwtSecret []byte, expiryHours int) *SessionManager {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		jwtSecret:   jwtSecret,
		expiryHours: expiryHours,
	}
}

// CreateSession registers a new session for userID and returns its signed
// token.
func (m *SessionManager) CreateSession(userID string) (token string, sess *Session, err error) {
	now := time.Now()
	sess = &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(m.expiryHours) * time.Hour),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	token, err = m.generateToken(sess)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, sess.ID)
		m.mu.Unlock()
		return "", nil, err
	}
	return token, sess, nil
}

func (m *SessionManager) generateToken(sess *Session) (string, error) {
	claims := Claims{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (m *SessionManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetSession returns the live session for an ID.
func (m *SessionManager) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// SetCurrentTool records the session's active tool after a switch.
func (m *SessionManager) SetCurrentTool(id, tool string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.CurrentTool = tool
	return nil
}

// SetSyncMode records the session's file-sync mode (spec.md §3 SyncRequest).
func (m *SessionManager) SetSyncMode(id, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.SyncMode = mode
	return nil
}

// RemoveSession drops a session (Disconnect handling).
func (m *SessionManager) RemoveSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// CleanupExpired evicts every session past its ExpiresAt.
func (m *SessionManager) CleanupExpired() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// ActiveCount returns the number of live sessions.
func (m *SessionManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
