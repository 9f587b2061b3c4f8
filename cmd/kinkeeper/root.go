package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dukerupert/kinkeeper/internal/config"
	"github.com/dukerupert/kinkeeper/internal/database"
	"github.com/dukerupert/kinkeeper/internal/logging"
)

var (
	dbPath string
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "kinkeeper",
	Short:         "kinkeeper tracks shared household expenses and milk deliveries",
	Long:          "kinkeeper is a household ledger service: shared expenses, daily milk deliveries per milkman, reports and spreadsheet exports.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		_ = godotenv.Load()

		cfg = config.Load()
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides KINKEEPER_DB_PATH)")
}

func withDB(fn func(db *sql.DB) error) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
