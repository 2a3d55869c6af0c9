package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate snippet configuration",
		Long: `Validate every configured snippet and report all entries missing a
name or snippet. Exits non-zero when any entry is invalid.`,
		Example: `  # Validate the configuration in the current workspace
  replsnip check

  # Validate as JSON (for CI)
  replsnip check --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd)
		},
	}
	return cmd
}

type checkResult struct {
	Valid  bool                      `json:"valid"`
	Count  int                       `json:"count"`
	Files  []string                  `json:"files"`
	Errors []snippet.ValidationError `json:"errors,omitempty"`
}

func runCheck(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	result := checkResult{Files: cmdCtx.Cfg.Files}
	reg, err := cmdCtx.registry()
	var cfgErr *snippet.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		result.Errors = cfgErr.Errors
		result.Count = len(snippet.Merge(cmdCtx.Cfg.Scopes()))
	case err != nil:
		return err
	default:
		result.Valid = true
		result.Count = reg.Len()
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(result); err != nil {
			return err
		}
	default:
		checkText(result, r)
	}

	if !result.Valid {
		return fmt.Errorf("%w: %d invalid entries", snippet.ErrConfiguration, len(result.Errors))
	}
	return nil
}

func checkText(result checkResult, r *output.Renderer) {
	r.Header(1, "Snippet configuration")
	if len(result.Files) == 0 {
		r.KeyValue("Files", "none (looked for "+config.WorkspaceFile+" and "+config.FolderFile+")")
	} else {
		r.KeyValue("Files", strings.Join(result.Files, ", "))
	}
	r.Println("")

	if result.Valid {
		r.Success(fmt.Sprintf("%d snippets OK", result.Count))
		return
	}
	for _, e := range result.Errors {
		name := "<unnamed>"
		if e.Name != nil {
			name = *e.Name
		}
		r.StatusLine(name, "error", "missing "+strings.Join(e.MissingFields, ", "))
	}
}
