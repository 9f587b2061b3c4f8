package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/kinkeeper/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *sql.DB) error {
			if err := database.Migrate(db); err != nil {
				return err
			}
			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at schema version %d\n", cfg.DBPath, v)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
