package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/kinkeeper/internal/database"
	"github.com/dukerupert/kinkeeper/internal/model"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *UserStore, *ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewUserStore(db), NewProfileStore(db)
}

func createTestUser(t *testing.T, us *UserStore, email string) *model.User {
	t.Helper()
	u, err := us.Create(email, "hash", model.AuthMethodPassword)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func TestHouseholdCreate(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")

	h, err := hs.Create("Sharma House", "pinhash", alice)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if h.Name != "Sharma House" {
		t.Errorf("name = %q, want %q", h.Name, "Sharma House")
	}
	if h.CreatedBy != alice.ID {
		t.Errorf("created_by = %d, want %d", h.CreatedBy, alice.ID)
	}
	if len(h.Members) != 1 || h.Members[0] != alice.ID {
		t.Errorf("members = %v, want [%d]", h.Members, alice.ID)
	}

	p, err := ps.Get(alice.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !p.HasHousehold() || *p.HouseholdID != h.ID {
		t.Errorf("profile household = %v, want %d", p.HouseholdID, h.ID)
	}
}

func TestHouseholdCreateSeedsMilkmen(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")

	h, err := hs.Create("Sharma House", "pinhash", alice)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	ms := NewMilkmanStore(hs.db)
	milkmen, err := ms.List(h.ID)
	if err != nil {
		t.Fatalf("list milkmen: %v", err)
	}
	if len(milkmen) != 2 {
		t.Fatalf("expected 2 seeded milkmen, got %d", len(milkmen))
	}
	if milkmen[0].Name != "Amul" || milkmen[0].Rate.String() != "58" {
		t.Errorf("milkmen[0] = %s @ %s, want Amul @ 58", milkmen[0].Name, milkmen[0].Rate)
	}
	if milkmen[1].Name != "Local Dairy" || milkmen[1].Rate.String() != "55" {
		t.Errorf("milkmen[1] = %s @ %s, want Local Dairy @ 55", milkmen[1].Name, milkmen[1].Rate)
	}
}

func TestHouseholdCreateDuplicateName(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")

	if _, err := hs.Create("Sharma House", "pinhash", alice); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := hs.Create("Sharma House", "otherhash", bob)
	if !errors.Is(err, ErrHouseholdNameTaken) {
		t.Fatalf("err = %v, want ErrHouseholdNameTaken", err)
	}

	p, err := ps.Get(bob.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p != nil {
		t.Error("failed create must not provision a profile")
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs, _, _ := setupHouseholdTestDB(t)

	h, err := hs.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestHouseholdGetByName(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")
	created, _ := hs.Create("Sharma House", "pinhash", alice)

	h, pinHash, err := hs.GetByName("Sharma House")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if h == nil || h.ID != created.ID {
		t.Fatalf("got %+v, want household %d", h, created.ID)
	}
	if pinHash != "pinhash" {
		t.Errorf("pin hash = %q, want %q", pinHash, "pinhash")
	}

	missing, _, err := hs.GetByName("Nobody")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown name")
	}
}

func TestHouseholdJoin(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")
	h, _ := hs.Create("Sharma House", "pinhash", alice)

	if err := hs.Join(h.ID, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	// joining again is harmless
	if err := hs.Join(h.ID, bob); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	members, err := hs.ListMembers(h.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[1].Email != "bob@example.com" {
		t.Errorf("second member = %q, want bob@example.com", members[1].Email)
	}

	p, _ := ps.Get(bob.ID)
	if !p.HasHousehold() || *p.HouseholdID != h.ID {
		t.Errorf("bob's profile household = %v, want %d", p.HouseholdID, h.ID)
	}
}

func TestHouseholdJoinMovesMembership(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")
	first, _ := hs.Create("Sharma House", "pinhash", alice)
	second, _ := hs.Create("Verma House", "pinhash", bob)

	pushes := NewPushStore(hs.db)
	if _, err := pushes.Subscribe(alice.ID, first.ID, "https://push.example.com/alice", "p256dh", "auth", "phone"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := hs.Join(second.ID, alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if m, _ := hs.GetMember(first.ID, alice.ID); m != nil {
		t.Error("alice still a member of her first household")
	}
	if subs, _ := pushes.ListByUser(first.ID, alice.ID); len(subs) != 0 {
		t.Errorf("subscriptions for the old household = %d, want 0", len(subs))
	}

	if err := hs.Leave(second.ID, alice.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if m, _ := hs.GetMember(first.ID, alice.ID); m != nil {
		t.Error("alice reappeared in her first household")
	}
	got, _ := hs.GetByID(first.ID)
	if len(got.Members) != 0 {
		t.Errorf("first household members = %v, want none", got.Members)
	}
	p, _ := ps.Get(alice.ID)
	if p.HasHousehold() {
		t.Errorf("profile household = %v, want nil", p.HouseholdID)
	}
}

func TestHouseholdLeave(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")
	h, _ := hs.Create("Sharma House", "pinhash", alice)
	hs.Join(h.ID, bob)

	if err := hs.Leave(h.ID, bob.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	m, err := hs.GetMember(h.ID, bob.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Error("expected membership to be removed")
	}

	p, err := ps.Get(bob.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil {
		t.Fatal("profile should survive leaving")
	}
	if p.HasHousehold() {
		t.Errorf("profile household = %v, want nil", p.HouseholdID)
	}

	got, _ := hs.GetByID(h.ID)
	if len(got.Members) != 1 {
		t.Errorf("members = %v, want only alice", got.Members)
	}
}

func TestHouseholdDelete(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)
	alice := createTestUser(t, us, "alice@example.com")
	h, _ := hs.Create("Sharma House", "pinhash", alice)

	if err := hs.Delete(h.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := hs.GetByID(h.ID)
	if got != nil {
		t.Error("expected household to be gone")
	}

	p, _ := ps.Get(alice.ID)
	if p.HasHousehold() {
		t.Error("profile should no longer reference a deleted household")
	}
}
