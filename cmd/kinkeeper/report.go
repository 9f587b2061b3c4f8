package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/kinkeeper/internal/milk"
	"github.com/dukerupert/kinkeeper/internal/report"
	"github.com/dukerupert/kinkeeper/internal/store"
)

var (
	reportHousehold int64
	reportFrom      string
	reportTo        string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a household report as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := report.ParseRange(reportFrom, reportTo, time.Now())
		if err != nil {
			return err
		}
		return withDB(func(db *sql.DB) error {
			svc, err := householdReports(db, reportHousehold)
			if err != nil {
				return err
			}
			summary, err := svc.Summary(cmd.Context(), reportHousehold, from, to)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		})
	},
}

// householdReports checks the household exists and returns a report service over db.
func householdReports(db *sql.DB, householdID int64) (*report.Service, error) {
	if householdID <= 0 {
		return nil, fmt.Errorf("--household is required")
	}
	h, err := store.NewHouseholdStore(db).GetByID(householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("household %d not found", householdID)
	}
	ledger := milk.NewLedger(store.NewMilkStore(db))
	return report.NewService(store.NewExpenseStore(db), ledger, store.NewMilkmanStore(db)), nil
}

func init() {
	reportCmd.Flags().Int64Var(&reportHousehold, "household", 0, "Household ID")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start date yyyy-MM-dd (default: first of this month)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End date yyyy-MM-dd (default: today)")
	rootCmd.AddCommand(reportCmd)
}
