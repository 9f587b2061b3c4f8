package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/kinkeeper/internal/push"
)

var vapidCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vapidCmd)
}
