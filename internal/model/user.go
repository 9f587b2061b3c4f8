package model

import "time"

const (
	AuthMethodPassword = "password"
	AuthMethodGoogle   = "google"
)

// User is an authenticated identity.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	AuthMethod string    `json:"auth_method"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserProfile carries the household reference for a user. A user may exist
// without a profile.
type UserProfile struct {
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	HouseholdID *int64    `json:"household_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasHousehold reports whether the profile references a household.
func (p *UserProfile) HasHousehold() bool {
	return p != nil && p.HouseholdID != nil && *p.HouseholdID != 0
}
