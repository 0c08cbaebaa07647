package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCredentialRoundTrip(t *testing.T) {
	store := openTestStore(t)

	cred, err := store.Credential()
	if err != nil {
		t.Fatalf("reading empty credential: %v", err)
	}
	if cred != "" {
		t.Errorf("expected empty credential, got %q", cred)
	}
	if store.HasSession() {
		t.Error("HasSession true before saving anything")
	}

	if err := store.SaveCredential("alphachat.sid=abc123"); err != nil {
		t.Fatalf("saving credential: %v", err)
	}
	cred, err = store.Credential()
	if err != nil {
		t.Fatalf("reading credential: %v", err)
	}
	if cred != "alphachat.sid=abc123" {
		t.Errorf("expected saved credential, got %q", cred)
	}
	if !store.HasSession() {
		t.Error("HasSession false after save")
	}

	// Overwrite, not duplicate.
	if err := store.SaveCredential("alphachat.sid=def456"); err != nil {
		t.Fatalf("overwriting credential: %v", err)
	}
	cred, _ = store.Credential()
	if cred != "alphachat.sid=def456" {
		t.Errorf("expected overwritten credential, got %q", cred)
	}
}

func TestUserIDRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveUserID("u1"); err != nil {
		t.Fatalf("saving user id: %v", err)
	}
	id, err := store.UserID()
	if err != nil {
		t.Fatalf("reading user id: %v", err)
	}
	if id != "u1" {
		t.Errorf("expected u1, got %q", id)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	store := openTestStore(t)

	store.SaveCredential("alphachat.sid=abc")
	store.SaveUserID("u1")

	if err := store.Clear(); err != nil {
		t.Fatalf("clearing: %v", err)
	}

	cred, _ := store.Credential()
	id, _ := store.UserID()
	if cred != "" || id != "" {
		t.Errorf("expected empty store after Clear, got cred=%q id=%q", cred, id)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "u1", "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestExpired(t *testing.T) {
	past := signedToken(t, time.Now().Add(-time.Hour))
	future := signedToken(t, time.Now().Add(time.Hour))

	tests := []struct {
		name       string
		credential string
		want       bool
	}{
		{"expired jwt", past, true},
		{"valid jwt", future, false},
		{"expired jwt in cookie", "alphachat.sid=" + past + "; Path=/; HttpOnly", true},
		{"valid jwt in cookie", "alphachat.sid=" + future, false},
		{"opaque credential", "alphachat.sid=not-a-jwt", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.credential); got != tt.want {
				t.Errorf("Expired(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
