package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/database"
	"github.com/dukerupert/kinkeeper/internal/model"
)

func setupMilkTestDB(t *testing.T) (*MilkmanStore, *MilkStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := NewUserStore(db).Create("alice@example.com", "hash", model.AuthMethodPassword)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h, err := NewHouseholdStore(db).Create("Sharma House", "pinhash", u)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewMilkmanStore(db), NewMilkStore(db), h.ID
}

func TestMilkmanCRUD(t *testing.T) {
	ms, _, hhID := setupMilkTestDB(t)

	m, err := ms.Create(hhID, "Gopal", decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Name != "Gopal" || !m.Rate.Equal(decimal.NewFromInt(60)) {
		t.Errorf("created = %+v", m)
	}

	list, err := ms.List(hhID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Amul", "Gopal", "Local Dairy"}
	if len(list) != len(want) {
		t.Fatalf("expected %d milkmen, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, name)
		}
	}

	updated, err := ms.Update(hhID, m.ID, "Gopal Dairy", decimal.RequireFromString("62.5"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Gopal Dairy" || !updated.Rate.Equal(decimal.RequireFromString("62.5")) {
		t.Errorf("updated = %+v", updated)
	}

	deleted, err := ms.Delete(hhID, m.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report success")
	}
	if got, _ := ms.GetByID(hhID, m.ID); got != nil {
		t.Error("expected milkman to be gone")
	}
}

func TestMilkmanScopedToHousehold(t *testing.T) {
	ms, _, hhID := setupMilkTestDB(t)
	m, _ := ms.Create(hhID, "Gopal", decimal.NewFromInt(60))

	if got, _ := ms.GetByID(hhID+1, m.ID); got != nil {
		t.Error("milkman must not be visible to another household")
	}
	if deleted, _ := ms.Delete(hhID+1, m.ID); deleted {
		t.Error("another household must not delete the milkman")
	}
}
