package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/kinkeeper/internal/export"
	"github.com/dukerupert/kinkeeper/internal/report"
)

var (
	exportHousehold int64
	exportFrom      string
	exportTo        string
	exportOut       string
	exportSheets    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export household expenses and milk entries to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := report.ParseRange(exportFrom, exportTo, time.Now())
		if err != nil {
			return err
		}
		out := strings.TrimSpace(exportOut)
		if out == "" {
			out = export.Filename(time.Now())
		}

		return withDB(func(db *sql.DB) error {
			svc, err := householdReports(db, exportHousehold)
			if err != nil {
				return err
			}
			data, err := svc.Load(cmd.Context(), exportHousehold, from, to)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			if err := export.Write(f, data.Expenses, data.Milk, data.Milkmen); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d expenses, %d milk days)\n", out, len(data.Expenses), len(data.Milk))

			if !exportSheets {
				return nil
			}
			if !cfg.SheetsEnabled() {
				return fmt.Errorf("--sheets requires GOOGLE_SPREADSHEET_ID and GOOGLE_SHEETS_CREDENTIALS_FILE")
			}
			w, err := export.NewSheetsWriter(cmd.Context(), cfg.SheetsCredentialsFile, cfg.SpreadsheetID, logger.With("component", "sheets"))
			if err != nil {
				return err
			}
			if err := w.Push(cmd.Context(), data.Expenses, data.Milk, data.Milkmen); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed to spreadsheet %s\n", cfg.SpreadsheetID)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportHousehold, "household", 0, "Household ID")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start date yyyy-MM-dd (default: first of this month)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End date yyyy-MM-dd (default: today)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output path (default: KinKeeper_Export_<date>.xlsx)")
	exportCmd.Flags().BoolVar(&exportSheets, "sheets", false, "Also push the export to the configured Google spreadsheet")
	rootCmd.AddCommand(exportCmd)
}
