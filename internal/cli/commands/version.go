package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info VersionInfo) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display replsnip version and build information.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(w, info.Version)
				return
			}
			_, _ = fmt.Fprintf(w, "replsnip v%s\n", info.Version)
			if known(info.Commit) {
				_, _ = fmt.Fprintf(w, "commit: %s\n", info.Commit)
			}
			if known(info.Date) {
				_, _ = fmt.Fprintf(w, "built:  %s\n", info.Date)
			}
			_, _ = fmt.Fprintln(w, "Custom REPL command snippets for Clojure editors")
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func known(s string) bool { return s != "" && s != "unknown" }
