package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kinkeeper/internal/model"
)

// ProfileStore persists the household reference of each user. Writes are
// upserts touching only the named columns.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.UserProfile, error) {
	var p model.UserProfile
	var householdID sql.NullInt64
	err := scanner.Scan(&p.UserID, &p.Email, &householdID, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if householdID.Valid {
		p.HouseholdID = &householdID.Int64
	}
	return &p, nil
}

const profileCols = `user_id, email, household_id, updated_at`

// Get returns the profile for userID, or nil if none has been provisioned.
func (s *ProfileStore) Get(userID int64) (*model.UserProfile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Ensure creates an empty profile if none exists. Existing profiles are left alone.
func (s *ProfileStore) Ensure(userID int64, email string) (*model.UserProfile, error) {
	_, err := s.db.Exec(
		`INSERT INTO profiles (user_id, email) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, email,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.Get(userID)
}

// SetHousehold points the profile at householdID, creating the profile if missing.
func (s *ProfileStore) SetHousehold(userID int64, email string, householdID int64) error {
	return setProfileHousehold(s.db, userID, email, householdID)
}

func setProfileHousehold(ex execer, userID int64, email string, householdID int64) error {
	_, err := ex.Exec(
		`INSERT INTO profiles (user_id, email, household_id) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET household_id = excluded.household_id, updated_at = CURRENT_TIMESTAMP`,
		userID, email, householdID,
	)
	if err != nil {
		return fmt.Errorf("set profile household: %w", err)
	}
	return nil
}

// ClearHousehold removes the household reference, keeping the profile.
func (s *ProfileStore) ClearHousehold(userID int64) error {
	return clearProfileHousehold(s.db, userID)
}

func clearProfileHousehold(ex execer, userID int64) error {
	_, err := ex.Exec(
		`UPDATE profiles SET household_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear profile household: %w", err)
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}
