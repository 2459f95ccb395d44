package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/galley/compose"
	"github.com/ByLCY/galley/layout"
)

func newInspectCmd(g *globalOpts) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Lay out a document and print its pages, metadata and layout issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), g)
			if err != nil {
				return err
			}
			out, plan, _, err := layoutFile(cmd.Context(), args[0], data, cfg)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), out, plan)
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON data file for ${data.*} placeholders")
	return cmd
}

// writeSummary prints a plain-text description of a laid-out document.
func writeSummary(w io.Writer, doc *layout.Document, plan *compose.Plan) {
	f := doc.Format
	fmt.Fprintf(w, "format:   %.2f x %.2f pt\n", f.Width, f.Height)
	fmt.Fprintf(w, "layers:   %d\n", len(plan.Jobs))
	fmt.Fprintf(w, "pages:    %d\n", len(doc.Pages))
	for i, page := range doc.Pages {
		fmt.Fprintf(w, "  page %d: %d nodes\n", i+1, len(page.Nodes))
	}

	m := doc.Meta
	for _, kv := range [][2]string{
		{"title", m.Title},
		{"author", m.Author},
		{"subject", m.Subject},
		{"creator", m.Creator},
		{"keywords", m.Keywords},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%-9s %s\n", kv[0]+":", kv[1])
		}
	}

	if len(plan.Missing) > 0 {
		fmt.Fprintf(w, "missing:  %s\n", strings.Join(plan.Missing, ", "))
	}
	r := doc.Report
	fmt.Fprintf(w, "degraded: %d\n", r.Degraded)
	fmt.Fprintf(w, "overflow: %d\n", r.Overflow)
	for _, msg := range r.Messages() {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
