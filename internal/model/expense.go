package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used for expense and milk dates.
const DateLayout = "2006-01-02"

type Expense struct {
	ID           int64           `json:"id"`
	HouseholdID  int64           `json:"household_id"`
	Date         string          `json:"date"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category"`
	AddedBy      string          `json:"added_by"`
	LastEditedBy string          `json:"last_edited_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
