package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kinkeeper/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.CreatedBy, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Email, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, created_by, created_at`

const householdMemberSelect = `SELECT hm.id, hm.household_id, hm.user_id, u.email, hm.created_at
	FROM household_members hm JOIN users u ON u.id = hm.user_id`

// defaultMilkmen are seeded into every new household.
var defaultMilkmen = []struct {
	name string
	rate string
}{
	{"Amul", "58"},
	{"Local Dairy", "55"},
}

// Create inserts a household, makes the creator its first member, points the
// creator's profile at it and seeds default milkmen, all in one transaction.
// A duplicate name yields ErrHouseholdNameTaken.
func (s *HouseholdStore) Create(name, pinHash string, creator *model.User) (*model.Household, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO households (name, pin_hash, created_by) VALUES (?, ?, ?)`,
		name, pinHash, creator.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrHouseholdNameTaken
		}
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (household_id, user_id) VALUES (?, ?)`,
		id, creator.ID,
	); err != nil {
		return nil, fmt.Errorf("add creator: %w", err)
	}

	if err := setProfileHousehold(tx, creator.ID, creator.Email, id); err != nil {
		return nil, err
	}

	for _, m := range defaultMilkmen {
		if _, err := tx.Exec(
			`INSERT INTO milkmen (household_id, name, rate) VALUES (?, ?, ?)`,
			id, m.name, m.rate,
		); err != nil {
			return nil, fmt.Errorf("seed milkman %q: %w", m.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the household with its member IDs, or nil if not found.
func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}

	members, err := s.ListMembers(id)
	if err != nil {
		return nil, err
	}
	h.Members = make([]int64, 0, len(members))
	for _, m := range members {
		h.Members = append(h.Members, m.UserID)
	}
	return h, nil
}

// GetByName returns the household and its PIN hash, or nil if not found.
func (s *HouseholdStore) GetByName(name string) (*model.Household, string, error) {
	var pinHash string
	var h model.Household
	err := s.db.QueryRow(
		`SELECT `+householdCols+`, pin_hash FROM households WHERE name = ?`, name,
	).Scan(&h.ID, &h.Name, &h.CreatedBy, &h.CreatedAt, &pinHash)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get household by name: %w", err)
	}
	return &h, pinHash, nil
}

// Join makes householdID the user's only household: any other membership,
// with its push subscriptions, is removed in the same transaction. Joining a
// household the user already belongs to is not an error.
func (s *HouseholdStore) Join(householdID int64, user *model.User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM push_subscriptions WHERE user_id = ? AND household_id != ?`,
		user.ID, householdID,
	); err != nil {
		return fmt.Errorf("remove other push subscriptions: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM household_members WHERE user_id = ? AND household_id != ?`,
		user.ID, householdID,
	); err != nil {
		return fmt.Errorf("remove other memberships: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (household_id, user_id) VALUES (?, ?)
		 ON CONFLICT(household_id, user_id) DO NOTHING`,
		householdID, user.ID,
	); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if err := setProfileHousehold(tx, user.ID, user.Email, householdID); err != nil {
		return err
	}
	return tx.Commit()
}

// Leave removes the membership and clears the profile's household reference.
func (s *HouseholdStore) Leave(householdID, userID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM push_subscriptions WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	); err != nil {
		return fmt.Errorf("remove push subscriptions: %w", err)
	}
	if err := clearProfileHousehold(tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *HouseholdStore) GetMember(householdID, userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		householdMemberSelect+` WHERE hm.household_id = ? AND hm.user_id = ?`,
		householdID, userID,
	)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) ListMembers(householdID int64) ([]model.HouseholdMember, error) {
	rows, err := s.db.Query(
		householdMemberSelect+` WHERE hm.household_id = ? ORDER BY hm.created_at ASC, hm.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.HouseholdMember
	for rows.Next() {
		m, err := scanHouseholdMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *HouseholdStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}
