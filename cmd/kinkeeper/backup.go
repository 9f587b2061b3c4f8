package main

import (
	"database/sql"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/kinkeeper/internal/backup"
)

var restoreOut string

func backupConfig() backup.Config {
	return backup.Config{
		Endpoint:   cfg.S3Endpoint,
		Bucket:     cfg.S3Bucket,
		Region:     cfg.S3Region,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Prefix:     cfg.BackupPrefix,
		Passphrase: cfg.BackupPassphrase,
		Retention:  cfg.BackupRetention,
	}
}

func withBackups(fn func(m *backup.Manager) error) error {
	if !cfg.BackupEnabled() {
		return fmt.Errorf("backups need S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY")
	}
	return withDB(func(db *sql.DB) error {
		return fn(backup.NewManager(backupConfig(), db, logger.With("component", "backup")))
	})
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted database backups to S3-compatible storage",
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up the database now and prune old backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(func(m *backup.Manager) error {
			obj, err := m.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", obj.Key, obj.Size)

			n, err := m.Prune(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d old backups\n", n)
			}
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(func(m *backup.Manager) error {
			objects, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tSIZE\tKEY")
			for _, o := range objects {
				fmt.Fprintf(w, "%s\t%d\t%s\n", o.CreatedAt.Format("2006-01-02 15:04:05Z"), o.Size, o.Key)
			}
			return w.Flush()
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore KEY",
	Short: "Download and decrypt a backup into a new database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreOut == "" {
			return fmt.Errorf("--out is required")
		}
		return withBackups(func(m *backup.Manager) error {
			if err := m.Restore(cmd.Context(), args[0], restoreOut); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s; point KINKEEPER_DB_PATH at it and restart\n", args[0], restoreOut)
			return nil
		})
	},
}

func init() {
	backupRestoreCmd.Flags().StringVar(&restoreOut, "out", "", "Path for the restored database (must not exist)")
	backupCmd.AddCommand(backupRunCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
