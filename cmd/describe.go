package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/andresmejia3/itemwatch/internal/store"
	"github.com/andresmejia3/itemwatch/internal/types"
	"github.com/andresmejia3/itemwatch/internal/utils"
	"github.com/spf13/cobra"
)

var describeTrinket bool

var describeCmd = &cobra.Command{
	Use:   "describe <id>",
	Short: "Print the stored description of an item or trinket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runDescribe(cmd.Context(), args[0], describeTrinket)
	},
}

func init() {
	describeCmd.Flags().BoolVarP(&describeTrinket, "trinket", "T", false, "Treat <id> as a trinket id")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(ctx context.Context, arg string, trinket bool) error {
	raw, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		utils.ShowError("Invalid id", err, nil)
		return err
	}
	kind := types.Item
	if trinket {
		kind = types.Trinket
	}
	id := types.UniqueID(kind, uint32(raw))

	var (
		d     types.Description
		found bool
	)
	if DB != nil {
		d, err = DB.GetDescription(ctx, id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, store.ErrNotFound):
			utils.ShowError("Database lookup failed", err, nil)
			return err
		}
	} else {
		set, err := newLoader().Load(ctx)
		if err != nil {
			utils.ShowError("Failed to load descriptions", err, nil)
			return err
		}
		d, found = set.Lookup(id)
	}

	if !found {
		fmt.Printf("❌ No description for %s %d (id %d).\n", kind, raw, id)
		return nil
	}

	fmt.Printf("%s (%s, id %d)\n", d.Title, d.Kind, d.ID)
	if d.Quote != "" {
		fmt.Printf("  %q\n", d.Quote)
	}
	for _, p := range d.Paragraphs {
		fmt.Printf("  - %s\n", p)
	}
	return nil
}
