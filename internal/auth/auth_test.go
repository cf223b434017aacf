package auth

import "testing"

func TestStaticTokenAuthenticatorAcceptsMatchingToken(t *testing.T) {
	a := NewStaticTokenAuthenticator("secret-token")
	if !a.Authenticate("anyone", "secret-token") {
		t.Fatal("expected matching token to authenticate")
	}
}

func TestStaticTokenAuthenticatorRejectsWrongToken(t *testing.T) {
	a := NewStaticTokenAuthenticator("secret-token")
	if a.Authenticate("anyone", "wrong-token") {
		t.Fatal("expected non-matching token to be rejected")
	}
}

func TestStaticTokenAuthenticatorRejectsDifferentLength(t *testing.T) {
	a := NewStaticTokenAuthenticator("secret-token")
	if a.Authenticate("anyone", "short") {
		t.Fatal("expected different-length token to be rejected")
	}
}

func TestStaticTokenAuthenticatorIgnoresUsername(t *testing.T) {
	a := NewStaticTokenAuthenticator("tok")
	if !a.Authenticate("alice", "tok") || !a.Authenticate("bob", "tok") {
		t.Fatal("expected token to authenticate regardless of username")
	}
}

func TestCredentialMapAuthenticatorPerUser(t *testing.T) {
	a := NewCredentialMapAuthenticator(map[string]string{
		"alice": "alice-token",
		"bob":   "bob-token",
	})
	if !a.Authenticate("alice", "alice-token") {
		t.Fatal("expected alice's token to authenticate")
	}
	if a.Authenticate("alice", "bob-token") {
		t.Fatal("expected alice's request with bob's token to be rejected")
	}
	if a.Authenticate("carol", "anything") {
		t.Fatal("expected unknown username to be rejected")
	}
}
