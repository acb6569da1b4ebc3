package peerbus

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	auth := NewBusAuth("test-secret-key", 2*time.Minute)

	token, expiresAt, err := auth.GenerateToken("web-01")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("token should expire in the future")
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.NodeID != "web-01" {
		t.Errorf("NodeID = %q, want web-01", claims.NodeID)
	}
}

func TestValidateTokenBearerPrefix(t *testing.T) {
	auth := NewBusAuth("test-secret-key", 2*time.Minute)

	token, _, err := auth.GenerateToken("web-01")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	claims, err := auth.ValidateToken("Bearer " + token)
	if err != nil {
		t.Fatalf("ValidateToken() with Bearer prefix failed: %v", err)
	}
	if claims.NodeID != "web-01" {
		t.Errorf("NodeID = %q, want web-01", claims.NodeID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	auth := NewBusAuth("secret-a", 2*time.Minute)
	other := NewBusAuth("secret-b", 2*time.Minute)

	token, _, err := auth.GenerateToken("web-01")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("a token signed with a different secret should not validate")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	auth := NewBusAuth("test-secret-key", time.Millisecond)

	token, _, err := auth.GenerateToken("web-01")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := auth.ValidateToken(token); err == nil {
		t.Error("an expired token should not validate")
	}
}

func TestValidateTokenEmpty(t *testing.T) {
	auth := NewBusAuth("test-secret-key", 2*time.Minute)
	if _, err := auth.ValidateToken(""); err == nil {
		t.Error("an empty token should not validate")
	}
	if _, err := auth.ValidateToken("not-a-jwt"); err == nil {
		t.Error("garbage should not validate")
	}
}

func TestGenerateTokenEmptyNodeID(t *testing.T) {
	auth := NewBusAuth("test-secret-key", 2*time.Minute)
	if _, _, err := auth.GenerateToken(""); err == nil {
		t.Error("an empty node ID should be rejected")
	}
}
