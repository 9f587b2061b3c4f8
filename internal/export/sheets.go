package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dukerupert/kinkeeper/internal/model"
)

// SheetsWriter mirrors an export into an existing Google spreadsheet that
// already has Expenses and Milk tabs.
type SheetsWriter struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsWriter authenticates with a service account key file.
func NewSheetsWriter(ctx context.Context, credentialsFile, spreadsheetID string, logger *slog.Logger) (*SheetsWriter, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return NewSheetsWriterWithOptions(ctx, spreadsheetID, logger,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
}

func NewSheetsWriterWithOptions(ctx context.Context, spreadsheetID string, logger *slog.Logger, opts ...option.ClientOption) (*SheetsWriter, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsWriter{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// Push replaces the contents of both tabs with the given data.
func (w *SheetsWriter) Push(ctx context.Context, expenses []model.Expense, data model.MilkData, milkmen []model.Milkman) error {
	tabs := []struct {
		name string
		rows [][]any
	}{
		{ExpensesSheet, ExpenseRows(expenses)},
		{MilkSheet, MilkRows(data, milkmen)},
	}

	for _, tab := range tabs {
		rng := tab.name + "!A:F"
		if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, rng, &sheets.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", tab.name, err)
		}

		vr := &sheets.ValueRange{Values: tab.rows}
		if _, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, tab.name+"!A1", vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", tab.name, err)
		}
		w.logger.InfoContext(ctx, "pushed sheet", "sheet", tab.name, "rows", len(tab.rows)-1)
	}
	return nil
}
