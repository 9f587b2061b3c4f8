package store

import (
	"testing"

	"github.com/dukerupert/kinkeeper/internal/database"
	"github.com/dukerupert/kinkeeper/internal/model"
)

type pushTestEnv struct {
	push       *PushStore
	households *HouseholdStore
	alice      *model.User
	bob        *model.User
	household  *model.Household
}

func setupPushTestDB(t *testing.T) *pushTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	hs := NewHouseholdStore(db)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")
	h, err := hs.Create("Sharma House", "pinhash", alice)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := hs.Join(h.ID, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	return &pushTestEnv{push: NewPushStore(db), households: hs, alice: alice, bob: bob, household: h}
}

func TestPushSubscribeUpsertsByEndpoint(t *testing.T) {
	env := setupPushTestDB(t)
	hid := env.household.ID

	first, err := env.push.Subscribe(env.alice.ID, hid, "https://push.example/1", "p1", "a1", "phone")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// The same browser signed in as bob now.
	second, err := env.push.Subscribe(env.bob.ID, hid, "https://push.example/1", "p2", "a2", "laptop")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	if second.UserID != env.bob.ID || second.P256dhKey != "p2" || second.DeviceName != "laptop" {
		t.Errorf("subscription not refreshed: %+v", second)
	}

	subs, err := env.push.ListByUser(hid, env.alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("alice subscriptions = %d, want 0", len(subs))
	}
}

func TestPushListRecipientsSkipsActor(t *testing.T) {
	env := setupPushTestDB(t)
	hid := env.household.ID
	env.push.Subscribe(env.alice.ID, hid, "https://push.example/a", "p", "a", "")
	env.push.Subscribe(env.bob.ID, hid, "https://push.example/b", "p", "a", "")

	subs, err := env.push.ListRecipients(hid, "alice@example.com")
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != env.bob.ID {
		t.Errorf("recipients = %+v, want bob only", subs)
	}
}

func TestPushDeleteScopedToOwner(t *testing.T) {
	env := setupPushTestDB(t)
	hid := env.household.ID
	sub, _ := env.push.Subscribe(env.alice.ID, hid, "https://push.example/a", "p", "a", "")

	ok, err := env.push.Delete(hid, env.bob.ID, sub.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Error("bob should not delete alice's subscription")
	}
	ok, err = env.push.Delete(hid, env.alice.ID, sub.ID)
	if err != nil || !ok {
		t.Errorf("delete own subscription: ok=%v err=%v", ok, err)
	}
}

func TestPushSubscriptionsRemovedOnLeave(t *testing.T) {
	env := setupPushTestDB(t)
	hid := env.household.ID
	env.push.Subscribe(env.bob.ID, hid, "https://push.example/b", "p", "a", "")

	if err := env.households.Leave(hid, env.bob.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	subs, err := env.push.ListRecipients(hid, "alice@example.com")
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("recipients after leave = %d, want 0", len(subs))
	}
}
