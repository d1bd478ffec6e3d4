package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toricodesthings/doc-conversion-service/internal/convert"
	"github.com/toricodesthings/doc-conversion-service/internal/types"
)

func newPagesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pages <file.pdf>",
		Short: "List the pages of a PDF and their sizes in points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			dims, err := convert.PageSizes(data)
			if err != nil {
				return err
			}

			pages := make([]types.PageInfo, len(dims))
			for i, d := range dims {
				pages[i] = types.PageInfo{Page: i + 1, Width: d.Width, Height: d.Height}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(pages)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PAGE\tWIDTH\tHEIGHT")
			for _, p := range pages {
				fmt.Fprintf(tw, "%d\t%.0f\t%.0f\n", p.Page, p.Width, p.Height)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
