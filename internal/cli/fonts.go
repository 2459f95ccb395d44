package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ByLCY/galley/fonts"
)

func newFontsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts",
		Short: "List the built-in fonts usable as builtin:<name>",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, name := range fonts.BuiltinNames() {
				marker := " "
				if fonts.BuiltinPrefix+name == fonts.DefaultFont {
					marker = "*"
				}
				if _, err := fmt.Fprintf(w, "%s %s%s\n", marker, fonts.BuiltinPrefix, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
