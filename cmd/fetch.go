package cmd

import (
	"fmt"

	"github.com/andresmejia3/itemwatch/internal/utils"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrape the description page again and replace the stored descriptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		set, err := newLoader().Refresh(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to refresh descriptions", err, nil)
			return err
		}

		target := descPath
		if DB != nil {
			target = "database"
		}
		fmt.Printf("✅ Saved %d descriptions to %s.\n", set.Len(), target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
