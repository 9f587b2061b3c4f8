package model

import "time"

type PushSubscription struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	HouseholdID int64     `json:"household_id"`
	Endpoint    string    `json:"endpoint"`
	P256dhKey   string    `json:"-"`
	AuthKey     string    `json:"-"`
	DeviceName  string    `json:"device_name"`
	CreatedAt   time.Time `json:"created_at"`
}
