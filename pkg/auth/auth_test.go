package auth

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "auth.db"), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAuthenticateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	if err := store.CreateUser("admin", "admin123", "Administrateur"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	user, err := store.Authenticate("admin", "admin123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if user == nil || user.DisplayName != "Administrateur" {
		t.Errorf("unexpected user %+v", user)
	}

	wrong, err := store.Authenticate("admin", "nope")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if wrong != nil {
		t.Error("wrong password must not authenticate")
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	if err := store.EnsureUser("admin", "admin123", "Admin"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := store.EnsureUser("admin", "other", "Admin"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	// The original password still works; ensure never overwrites.
	user, err := store.Authenticate("admin", "admin123")
	if err != nil || user == nil {
		t.Errorf("original credentials lost: user=%v err=%v", user, err)
	}
}

func TestDuplicateCreateFails(t *testing.T) {
	store := openTestStore(t)
	if err := store.CreateUser("bob", "pw", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.CreateUser("bob", "pw2", ""); err == nil {
		t.Error("expected duplicate username to fail")
	}
}
