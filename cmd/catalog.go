package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/itemwatch/internal/catalog"
	"github.com/andresmejia3/itemwatch/internal/types"
	"github.com/andresmejia3/itemwatch/internal/utils"
	"github.com/spf13/cobra"
)

var catalogMissingOnly bool

var catalogCmd = &cobra.Command{
	Use:   "catalog <catalog_root>",
	Short: "List the sprites under a catalog root and whether each has a description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		templates, err := catalog.Load(args[0], os.Stderr)
		if err != nil {
			utils.ShowError("Failed to load catalog", err, nil)
			return err
		}
		if len(templates) == 0 {
			fmt.Println("No sprites found.")
			return nil
		}

		set, err := newLoader().Load(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to load descriptions", err, nil)
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSIZE\tFILE\tTITLE")
		fmt.Fprintln(w, "--\t----\t----\t----\t-----")

		missing := 0
		for _, t := range templates {
			kind := types.Item
			if t.ID >= types.TrinketOffset {
				kind = types.Trinket
			}
			title := "(no description)"
			if d, ok := set.Lookup(t.ID); ok {
				if catalogMissingOnly {
					continue
				}
				title = d.Title
			} else {
				missing++
			}
			size := t.Size()
			fmt.Fprintf(w, "%d\t%s\t%dx%d\t%s\t%s\n", t.ID, kind, size.X, size.Y, t.Name, title)
		}
		w.Flush()

		fmt.Printf("\n%d sprites, %d without a description.\n", len(templates), missing)
		if missing > 0 {
			fmt.Println("⚠️  Watching will stop on the first match of a sprite without a description.")
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogMissingOnly, "missing", false, "Only list sprites without a description")
	rootCmd.AddCommand(catalogCmd)
}
