package auth

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"
)

// ErrInviteNotFound is returned when a code has no matching entry.
var ErrInviteNotFound = errors.New("auth: invite not found")

// ErrInviteExhausted is returned when a code's use count is already spent.
var ErrInviteExhausted = errors.New("auth: invite exhausted")

// ErrInviteExpired is returned when a code's expiry has passed.
var ErrInviteExpired = errors.New("auth: invite expired")

// inviteAlphabet excludes visually ambiguous characters (0/O, 1/I),
// matching auth/invite.rs's generate_code charset exactly.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const inviteCodeLength = 8

// InviteCode is a single-use-or-multi-use onboarding token.
type InviteCode struct {
	Code      string
	CreatedAt time.Time
	ExpiresAt *time.Time
	MaxUses   int
	Uses      int
	IsAdmin   bool
	CreatedBy string
}

// IsValid reports whether the code is still usable.
func (c InviteCode) IsValid() bool {
	if c.ExpiresAt != nil && time.Now().After(*c.ExpiresAt) {
		return false
	}
	return c.Uses < c.MaxUses
}

// RemainingUses reports how many redemptions are left.
func (c InviteCode) RemainingUses() int {
	if c.MaxUses-c.Uses < 0 {
		return 0
	}
	return c.MaxUses - c.Uses
}

// InviteManager holds invite codes in memory only — restarting the server
// revokes every outstanding invite, matching auth/invite.rs's
// Arc<RwLock<HashMap<String, InviteCode>>> (never persisted to SQLite).
type InviteManager struct {
	mu      sync.RWMutex
	invites map[string]*InviteCode
}

// NewInviteManager builds an empty invite manager.
func NewInviteManager() *InviteManager {
	return &InviteManager{invites: make(map[string]*InviteCode)}
}

// GenerateInvite creates and stores a new invite code.
func (m *InviteManager) GenerateInvite(maxUses int, ttl time.Duration, isAdmin bool, createdBy string) (*InviteCode, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	inv := &InviteCode{
		Code:      code,
		CreatedAt: time.Now(),
		MaxUses:   maxUses,
		IsAdmin:   isAdmin,
		CreatedBy: createdBy,
	}
	if ttl > 0 {
		exp := inv.CreatedAt.Add(ttl)
		inv.ExpiresAt = &exp
	}

	m.mu.Lock()
	m.invites[code] = inv
	m.mu.Unlock()
	return inv, nil
}

func generateCode() (string, error) {
	b := make([]byte, inviteCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, inviteCodeLength)
	for i, v := range b {
		out[i] = inviteAlphabet[int(v)%len(inviteAlphabet)]
	}
	return string(out), nil
}

// UseInvite validates and redeems one use of a code, evicting it once
// exhausted.
func (m *InviteManager) UseInvite(code string) (*InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invites[code]
	if !ok {
		return nil, ErrInviteNotFound
	}
	if inv.ExpiresAt != nil && time.Now().After(*inv.ExpiresAt) {
		delete(m.invites, code)
		return nil, ErrInviteExpired
	}
	if inv.Uses >= inv.MaxUses {
		return nil, ErrInviteExhausted
	}

	inv.Uses++
	result := *inv
	if inv.Uses >= inv.MaxUses {
		delete(m.invites, code)
	}
	return &result, nil
}

// ValidateInvite checks a code without consuming a use.
func (m *InviteManager) ValidateInvite(code string) (*InviteCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invites[code]
	if !ok {
		return nil, ErrInviteNotFound
	}
	if !inv.IsValid() {
		if inv.ExpiresAt != nil && time.Now().After(*inv.ExpiresAt) {
			return nil, ErrInviteExpired
		}
		return nil, ErrInviteExhausted
	}
	cp := *inv
	return &cp, nil
}

// ListInvites returns every outstanding invite.
func (m *InviteManager) ListInvites() []InviteCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]InviteCode, 0, len(m.invites))
	for _, inv := range m.invites {
		out = append(out, *inv)
	}
	return out
}

// RevokeInvite removes a code immediately.
func (m *InviteManager) RevokeInvite(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[code]; !ok {
		return false
	}
	delete(m.invites, code)
	return true
}

// CleanupExpired evicts every invite past its expiry.
func (m *InviteManager) CleanupExpired() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for code, inv := range m.invites {
		if inv.ExpiresAt != nil && now.After(*inv.ExpiresAt) {
			delete(m.invites, code)
			removed++
		}
	}
	return removed
}

// ActiveCount returns the number of outstanding invites.
func (m *InviteManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.invites)
}
