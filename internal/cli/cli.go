package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version, usually injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// globalOpts are the persistent flags shared by every command.
type globalOpts struct {
	verbose bool
	config  string
}

// Execute runs the galley CLI.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	var g globalOpts

	root := &cobra.Command{
		Use:          "galley",
		Short:        "galley typesets documents with Knuth-Plass line breaking",
		Long:         `galley lays out a document description into pages using optimal line breaking, flowing text through page, column and table regions, and writes PDF or PNG output.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if g.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("galley %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&g.config, "config", "c", "", "TOML configuration file")

	root.AddCommand(newRenderCmd(&g))
	root.AddCommand(newInspectCmd(&g))
	root.AddCommand(newFontsCmd())

	return root
}
