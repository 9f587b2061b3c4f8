package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Milkman is a milk supplier with a per-liter rate.
type Milkman struct {
	ID          int64           `json:"id"`
	HouseholdID int64           `json:"household_id"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MilkEntry is one supplier's delivery for a day. A nil quantity means no
// delivery in that session.
type MilkEntry struct {
	Morning      *decimal.Decimal `json:"morning,omitempty"`
	Evening      *decimal.Decimal `json:"evening,omitempty"`
	LastEditedBy string           `json:"last_edited_by,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at,omitzero"`
}

// Quantity returns morning plus evening, treating absent values as zero.
func (e MilkEntry) Quantity() decimal.Decimal {
	q := decimal.Zero
	if e.Morning != nil {
		q = q.Add(*e.Morning)
	}
	if e.Evening != nil {
		q = q.Add(*e.Evening)
	}
	return q
}

// DailyMilkRecord maps milkman ID to that milkman's entry for one date.
type DailyMilkRecord map[int64]MilkEntry

// MilkData maps an ISO date to its record.
type MilkData map[string]DailyMilkRecord
