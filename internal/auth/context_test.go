package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:      1,
		Email:       "alice@example.com",
		HouseholdID: 2,
		SessionID:   3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "alice@example.com")
	}
	if got.HouseholdID != 2 {
		t.Errorf("HouseholdID = %d, want 2", got.HouseholdID)
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccessorsMissing(t *testing.T) {
	ctx := context.Background()
	if HouseholdID(ctx) != 0 {
		t.Error("expected 0 household for missing context")
	}
	if UserID(ctx) != 0 {
		t.Error("expected 0 user for missing context")
	}
	if Email(ctx) != "" {
		t.Error("expected empty email for missing context")
	}
}

func TestAccessors(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7, HouseholdID: 42, Email: "bob@example.com"})
	if HouseholdID(ctx) != 42 {
		t.Errorf("HouseholdID = %d, want 42", HouseholdID(ctx))
	}
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
	if Email(ctx) != "bob@example.com" {
		t.Errorf("Email = %q, want bob@example.com", Email(ctx))
	}
}
