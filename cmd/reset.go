package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/andresmejia3/itemwatch/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB    bool
	resetCache bool
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored descriptions (Database, Cache File)",
	Long:  "Clears stored descriptions so the next run scrapes them again. By default, it resets everything. Use flags to clear specific components.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetCache {
			resetDB = true
			resetCache = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				fmt.Println("ℹ️  No database configured, skipping.")
			} else if resetYes || confirm(reader, "⚠️  Are you sure you want to DROP the description table?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetCache {
			if resetYes || confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete %s?", descPath)) {
				fmt.Println("🗑️  Clearing Description Cache...")
				removeFile(descPath)
			}
		}

		fmt.Println("✨ Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "database", false, "Clear the PostgreSQL description table")
	resetCmd.Flags().BoolVar(&resetCache, "cache", false, "Delete the description cache file")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
