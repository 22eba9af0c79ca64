package auth

import (
	"testing"
	"time"
)

func TestInviteCodeAlphabetExcludesAmbiguousChars(t *testing.T) {
	code, err := generateCode()
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if len(code) != inviteCodeLength {
		t.Fatalf("expected length %d, got %d", inviteCodeLength, len(code))
	}
	for _, c := range code {
		if c == '0' || c == 'O' || c == '1' || c == 'I' {
			t.Errorf("code %q contains ambiguous character %q", code, c)
		}
	}
}

func TestUseInviteEvictsOnExhaustion(t *testing.T) {
	m := NewInviteManager()
	inv, err := m.GenerateInvite(1, 0, false, "admin")
	if err != nil {
		t.Fatalf("GenerateInvite: %v", err)
	}
	if _, err := m.UseInvite(inv.Code); err != nil {
		t.Fatalf("UseInvite: %v", err)
	}
	if _, err := m.UseInvite(inv.Code); err != ErrInviteNotFound {
		t.Fatalf("expected eviction after exhaustion, got %v", err)
	}
}

func TestUseInviteRejectsExpired(t *testing.T) {
	m := NewInviteManager()
	inv, err := m.GenerateInvite(5, time.Nanosecond, false, "admin")
	if err != nil {
		t.Fatalf("GenerateInvite: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := m.UseInvite(inv.Code); err != ErrInviteExpired {
		t.Fatalf("expected ErrInviteExpired, got %v", err)
	}
}

func TestSessionManagerRoundTripsJWT(t *testing.T) {
	sm := NewSessionManager([]byte("test-secret"), 1)
	token, sess, err := sm.CreateSession("user-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	claims, err := sm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != sess.ID {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

func TestSessionManagerRejectsTamperedToken(t *testing.T) {
	sm := NewSessionManager([]byte("test-secret"), 1)
	token, _, err := sm.CreateSession("user-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	tampered := token[:len(token)-1] + "x"
	if _, err := sm.ValidateToken(tampered); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionManagerCleanupExpired(t *testing.T) {
	sm := NewSessionManager([]byte("secret"), 1)
	_, sess, _ := sm.CreateSession("u")
	sess.ExpiresAt = time.Now().Add(-time.Hour)

	if n := sm.CleanupExpired(); n != 1 {
		t.Errorf("expected 1 session cleaned up, got %d", n)
	}
	if sm.ActiveCount() != 0 {
		t.Errorf("expected 0 active sessions, got %d", sm.ActiveCount())
	}
}
