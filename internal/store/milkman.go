package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/model"
)

type MilkmanStore struct {
	db *sql.DB
}

func NewMilkmanStore(db *sql.DB) *MilkmanStore {
	return &MilkmanStore{db: db}
}

func scanMilkman(scanner interface{ Scan(...any) error }) (*model.Milkman, error) {
	var m model.Milkman
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.Name, &m.Rate, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const milkmanCols = `id, household_id, name, rate, created_at`

func (s *MilkmanStore) Create(householdID int64, name string, rate decimal.Decimal) (*model.Milkman, error) {
	result, err := s.db.Exec(
		`INSERT INTO milkmen (household_id, name, rate) VALUES (?, ?, ?)`,
		householdID, name, rate.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert milkman: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(householdID, id)
}

func (s *MilkmanStore) GetByID(householdID, id int64) (*model.Milkman, error) {
	row := s.db.QueryRow(
		`SELECT `+milkmanCols+` FROM milkmen WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	m, err := scanMilkman(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get milkman: %w", err)
	}
	return m, nil
}

// List returns the household's milkmen ordered by name.
func (s *MilkmanStore) List(householdID int64) ([]model.Milkman, error) {
	rows, err := s.db.Query(
		`SELECT `+milkmanCols+` FROM milkmen WHERE household_id = ? ORDER BY name ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list milkmen: %w", err)
	}
	defer rows.Close()

	var milkmen []model.Milkman
	for rows.Next() {
		m, err := scanMilkman(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milkman: %w", err)
		}
		milkmen = append(milkmen, *m)
	}
	return milkmen, rows.Err()
}

func (s *MilkmanStore) Update(householdID, id int64, name string, rate decimal.Decimal) (*model.Milkman, error) {
	_, err := s.db.Exec(
		`UPDATE milkmen SET name = ?, rate = ? WHERE id = ? AND household_id = ?`,
		name, rate.String(), id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update milkman: %w", err)
	}
	return s.GetByID(householdID, id)
}

// Delete removes the milkman. Milk entries that reference it are kept.
func (s *MilkmanStore) Delete(householdID, id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM milkmen WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return false, fmt.Errorf("delete milkman: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
