package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/model"
)

type ExpenseStore struct {
	db *sql.DB
}

func NewExpenseStore(db *sql.DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

// ExpenseUpdate names the fields to change; nil fields are left untouched.
type ExpenseUpdate struct {
	Date     *string
	Name     *string
	Amount   *decimal.Decimal
	Category *string
}

func scanExpense(scanner interface{ Scan(...any) error }) (*model.Expense, error) {
	var e model.Expense
	err := scanner.Scan(
		&e.ID, &e.HouseholdID, &e.Date, &e.Name, &e.Amount, &e.Category,
		&e.AddedBy, &e.LastEditedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const expenseCols = `id, household_id, date, name, amount, category, added_by, last_edited_by, created_at, updated_at`

func (s *ExpenseStore) Create(householdID int64, date, name string, amount decimal.Decimal, category, addedBy string) (*model.Expense, error) {
	result, err := s.db.Exec(
		`INSERT INTO expenses (household_id, date, name, amount, category, added_by, last_edited_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		householdID, date, name, amount.String(), category, addedBy, addedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(householdID, id)
}

// GetByID returns the expense if it belongs to the household, or nil.
func (s *ExpenseStore) GetByID(householdID, id int64) (*model.Expense, error) {
	row := s.db.QueryRow(
		`SELECT `+expenseCols+` FROM expenses WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// List returns the household's expenses newest first. Empty from/to leave
// that side of the inclusive date range open.
func (s *ExpenseStore) List(householdID int64, from, to string) ([]model.Expense, error) {
	query := `SELECT ` + expenseCols + ` FROM expenses WHERE household_id = ?`
	args := []any{householdID}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// Update writes only the fields set in u and records the editor.
func (s *ExpenseStore) Update(householdID, id int64, u ExpenseUpdate, editedBy string) (*model.Expense, error) {
	sets := []string{"last_edited_by = ?"}
	args := []any{editedBy}
	if u.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *u.Date)
	}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, u.Amount.String())
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *u.Category)
	}
	args = append(args, id, householdID)

	_, err := s.db.Exec(
		`UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE id = ? AND household_id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return s.GetByID(householdID, id)
}

// Delete removes the expense and reports whether it existed.
func (s *ExpenseStore) Delete(householdID, id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM expenses WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
