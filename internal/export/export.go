// Package export turns a household's expenses and milk ledger into
// spreadsheet rows, an .xlsx workbook, or a Google Sheets update.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dukerupert/kinkeeper/internal/model"
)

const (
	ExpensesSheet = "Expenses"
	MilkSheet     = "Milk"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	expenseHeader = []any{"Date", "Item", "Amount", "Category", "Added By"}
	milkHeader    = []any{"Date", "Milkman", "Morning Qty (L)", "Evening Qty (L)", "Total Qty (L)", "Cost"}
)

// Filename is the download name for an export made at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("KinKeeper_Export_%s.xlsx", now.Format(model.DateLayout))
}

// ExpenseRows returns the Expenses sheet, header first.
func ExpenseRows(expenses []model.Expense) [][]any {
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, expenseHeader)
	for _, e := range expenses {
		rows = append(rows, []any{e.Date, e.Name, e.Amount.InexactFloat64(), e.Category, e.AddedBy})
	}
	return rows
}

// MilkRows returns the Milk sheet, header first, sorted by date then
// milkman name. Entries for deleted milkmen are left out.
func MilkRows(data model.MilkData, milkmen []model.Milkman) [][]any {
	byID := make(map[int64]model.Milkman, len(milkmen))
	for _, m := range milkmen {
		byID[m.ID] = m
	}

	type line struct {
		date  string
		name  string
		entry model.MilkEntry
		rate  decimal.Decimal
	}
	var lines []line
	for date, record := range data {
		for id, entry := range record {
			m, ok := byID[id]
			if !ok {
				continue
			}
			lines = append(lines, line{date: date, name: m.Name, entry: entry, rate: m.Rate})
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].date != lines[j].date {
			return lines[i].date < lines[j].date
		}
		return lines[i].name < lines[j].name
	})

	rows := make([][]any, 0, len(lines)+1)
	rows = append(rows, milkHeader)
	for _, l := range lines {
		total := l.entry.Quantity()
		rows = append(rows, []any{
			l.date,
			l.name,
			quantity(l.entry.Morning).InexactFloat64(),
			quantity(l.entry.Evening).InexactFloat64(),
			total.InexactFloat64(),
			total.Mul(l.rate).Round(2).InexactFloat64(),
		})
	}
	return rows
}

func quantity(q *decimal.Decimal) decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	return *q
}

// Workbook builds the two-sheet export. The caller must Close it.
func Workbook(expenses []model.Expense, data model.MilkData, milkmen []model.Milkman) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), ExpensesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(MilkSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("add milk sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{ExpensesSheet, ExpenseRows(expenses)},
		{MilkSheet, MilkRows(data, milkmen)},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.rows, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, expenses []model.Expense, data model.MilkData, milkmen []model.Milkman) error {
	f, err := Workbook(expenses, data, milkmen)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	widths := make([]int, 0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
		for c, v := range row {
			n := len(fmt.Sprint(v))
			if c >= len(widths) {
				widths = append(widths, n)
			} else if n > widths[c] {
				widths[c] = n
			}
		}
	}

	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(w+2)); err != nil {
			return fmt.Errorf("size %s column %s: %w", sheet, col, err)
		}
	}
	return nil
}
