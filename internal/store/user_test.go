package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/kinkeeper/internal/database"
	"github.com/dukerupert/kinkeeper/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "hash", model.AuthMethodPassword)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.AuthMethod != model.AuthMethodPassword {
		t.Errorf("auth method = %q, want %q", u.AuthMethod, model.AuthMethodPassword)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "hash", model.AuthMethodPassword); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := us.Create("alice@example.com", "", model.AuthMethodGoogle)
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)
	created, _ := us.Create("alice@example.com", "hash", model.AuthMethodPassword)

	u, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want user %d", u, created.ID)
	}

	missing, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserPasswordHash(t *testing.T) {
	us := setupUserTestDB(t)
	pw, _ := us.Create("alice@example.com", "hash", model.AuthMethodPassword)
	sso, _ := us.Create("bob@example.com", "", model.AuthMethodGoogle)

	hash, err := us.GetPasswordHash(pw.ID)
	if err != nil {
		t.Fatalf("get hash: %v", err)
	}
	if hash != "hash" {
		t.Errorf("hash = %q, want %q", hash, "hash")
	}

	hash, err = us.GetPasswordHash(sso.ID)
	if err != nil {
		t.Fatalf("get sso hash: %v", err)
	}
	if hash != "" {
		t.Errorf("sso hash = %q, want empty", hash)
	}
}

func TestUserDelete(t *testing.T) {
	us := setupUserTestDB(t)
	u, _ := us.Create("alice@example.com", "hash", model.AuthMethodPassword)

	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := us.GetByID(u.ID)
	if got != nil {
		t.Error("expected user to be gone")
	}
}
