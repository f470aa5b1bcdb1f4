package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	bboltstorage "github.com/jmcleod/keyrelay/storage/bbolt"
)

var auditDataDir string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the recorded audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bboltstorage.NewStoreFromFile(auditDataDir+"/audit.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer store.Close()

		events, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list audit events: %w", err)
		}

		for _, e := range events {
			line := fmt.Sprintf("%s  %-20s  %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Event, e.RemoteAddr)
			if e.Detail != "" {
				line += "  (" + e.Detail + ")"
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d event(s)\n", len(events))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVar(&auditDataDir, "data-dir", "./data", "Directory for persistent data")
}
