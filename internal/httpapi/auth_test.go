package httpapi

import (
	"testing"
	"time"

	"comptoir/backend/internal/domain"
)

func newTestAuth() *AuthManager {
	return NewAuthManager("test-secret-key", time.Hour, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.sign("vendeur", "seller", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.Username != "vendeur" || actor.Role != "seller" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.sign("vendeur", "seller", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	auth := newTestAuth()
	other := NewAuthManager("another-secret-key", time.Hour, nil)

	token, err := other.sign("vendeur", "seller", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestCreateSellerValidation(t *testing.T) {
	auth := newTestAuth()

	cases := []domain.SellerCreateRequest{
		{Username: "ab", Password: "longenough"},
		{Username: "with space", Password: "longenough"},
		{Username: "valide", Password: "abc"},
	}
	for i, req := range cases {
		if _, err := auth.CreateSeller(req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	seller, err := auth.CreateSeller(domain.SellerCreateRequest{Username: "Aminata", Password: "motdepasse"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	if seller.Username != "aminata" || seller.Role != "seller" {
		t.Fatalf("unexpected seller: %+v", seller)
	}

	if _, err := auth.CreateSeller(domain.SellerCreateRequest{Username: "aminata", Password: "motdepasse"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}
