package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/milk"
	"github.com/dukerupert/kinkeeper/internal/model"
)

// MilkStore keeps the sparse milk ledger: one milk_days row per date that has
// at least one entry, and one milk_entries row per (date, milkman).
type MilkStore struct {
	db *sql.DB
}

func NewMilkStore(db *sql.DB) *MilkStore {
	return &MilkStore{db: db}
}

var _ milk.Backend = (*MilkStore)(nil)

const milkEntryCols = `date, milkman_id, morning, evening, last_edited_by, updated_at`

func scanMilkEntry(scanner interface{ Scan(...any) error }) (string, int64, model.MilkEntry, error) {
	var (
		date      string
		milkmanID int64
		morning   decimal.NullDecimal
		evening   decimal.NullDecimal
		e         model.MilkEntry
	)
	if err := scanner.Scan(&date, &milkmanID, &morning, &evening, &e.LastEditedBy, &e.UpdatedAt); err != nil {
		return "", 0, e, err
	}
	if morning.Valid {
		e.Morning = &morning.Decimal
	}
	if evening.Valid {
		e.Evening = &evening.Decimal
	}
	return date, milkmanID, e, nil
}

// Day returns the record for one date. A date with no entries yields an empty record.
func (s *MilkStore) Day(ctx context.Context, householdID int64, date string) (model.DailyMilkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milkEntryCols+` FROM milk_entries WHERE household_id = ? AND date = ?`,
		householdID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("query milk day: %w", err)
	}
	defer rows.Close()

	record := model.DailyMilkRecord{}
	for rows.Next() {
		_, milkmanID, e, err := scanMilkEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milk entry: %w", err)
		}
		record[milkmanID] = e
	}
	return record, rows.Err()
}

// Range returns every stored date within the inclusive range. Empty bounds are open.
func (s *MilkStore) Range(ctx context.Context, householdID int64, from, to string) (model.MilkData, error) {
	query := `SELECT ` + milkEntryCols + ` FROM milk_entries WHERE household_id = ?`
	args := []any{householdID}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date ASC, milkman_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query milk range: %w", err)
	}
	defer rows.Close()

	data := model.MilkData{}
	for rows.Next() {
		date, milkmanID, e, err := scanMilkEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milk entry: %w", err)
		}
		if data[date] == nil {
			data[date] = model.DailyMilkRecord{}
		}
		data[date][milkmanID] = e
	}
	return data, rows.Err()
}

// Apply performs the per-milkman writes for one date and drops the date row
// when no entries remain. Everything happens in one transaction, so the
// emptiness check sees exactly the state the writes produced.
func (s *MilkStore) Apply(ctx context.Context, householdID int64, date string, writes []milk.Write) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		if w.Delete {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM milk_entries WHERE household_id = ? AND date = ? AND milkman_id = ?`,
				householdID, date, w.MilkmanID,
			); err != nil {
				return false, fmt.Errorf("delete milk entry %d: %w", w.MilkmanID, err)
			}
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO milk_days (household_id, date) VALUES (?, ?)
			 ON CONFLICT(household_id, date) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`,
			householdID, date,
		); err != nil {
			return false, fmt.Errorf("upsert milk day: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO milk_entries (household_id, date, milkman_id, morning, evening, last_edited_by, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(household_id, date, milkman_id) DO UPDATE SET
			   morning = excluded.morning,
			   evening = excluded.evening,
			   last_edited_by = excluded.last_edited_by,
			   updated_at = excluded.updated_at`,
			householdID, date, w.MilkmanID,
			nullableDecimal(w.Entry.Morning), nullableDecimal(w.Entry.Evening),
			w.Entry.LastEditedBy, w.Entry.UpdatedAt.UTC(),
		); err != nil {
			return false, fmt.Errorf("upsert milk entry %d: %w", w.MilkmanID, err)
		}
	}

	var remaining int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM milk_entries WHERE household_id = ? AND date = ?`,
		householdID, date,
	).Scan(&remaining); err != nil {
		return false, fmt.Errorf("count milk entries: %w", err)
	}

	dayDeleted := false
	if remaining == 0 {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM milk_days WHERE household_id = ? AND date = ?`,
			householdID, date,
		)
		if err != nil {
			return false, fmt.Errorf("delete milk day: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("rows affected: %w", err)
		}
		dayDeleted = n > 0
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return dayDeleted, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
