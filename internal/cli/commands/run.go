package commands

import (
	"fmt"

	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/editctx"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/cobra"
)

// RunOptions describes the editing location a run is evaluated against.
type RunOptions struct {
	File           string
	Line           int
	Column         int
	SelectionStart int
	SelectionEnd   int
	Language       string
	HoverFile      string
	HoverLine      int
	HoverColumn    int
	HoverText      string
}

// Provider returns the editing context described by the options.
func (o *RunOptions) Provider() (editctx.Provider, error) {
	var hover *editctx.Hover
	if o.HoverFile != "" || o.HoverText != "" {
		hover = &editctx.Hover{
			File: o.HoverFile,
			Pos:  editctx.Position{Line: o.HoverLine, Column: o.HoverColumn},
			Text: o.HoverText,
		}
	}

	pos := editctx.Position{Line: o.Line, Column: o.Column}
	if o.File == "" {
		return &editctx.Static{Pos: pos, Language: o.Language, HoverAt: hover}, nil
	}
	return editctx.LoadDocument(o.File, pos, editctx.DocumentOptions{
		SelectionStart: o.SelectionStart,
		SelectionEnd:   o.SelectionEnd,
		Hover:          hover,
		LanguageID:     o.Language,
	})
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [code-or-key]",
		Short: "Run a snippet or code at the REPL",
		Long: `Run a configured snippet, chosen by key or from a menu, or literal code.

Without an argument a menu of all configured snippets is shown. An argument
that matches a snippet key runs that snippet; anything else is evaluated as
code. Placeholders such as $current-form or $ns are filled in from the file
and cursor given with --file, --line and --column (zero-based).

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output json for a machine-readable result.`,
		Example: `  # Pick a snippet from the menu
  replsnip run

  # Run the snippet bound to key "r" against a cursor position
  replsnip run r --file src/my/app.clj --line 12 --column 4

  # Evaluate code, interpolating the top-level form at the cursor
  replsnip run '(time $top-level-form)' --file src/my/app.clj --line 30

  # Evaluate against the ClojureScript REPL
  replsnip run '(js/alert "hi")' --session cljs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var codeOrKey *string
			if len(args) > 0 {
				codeOrKey = &args[0]
			}
			return runRun(cmd, codeOrKey, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "File the cursor is in")
	cmd.Flags().IntVar(&opts.Line, "line", 0, "Cursor line (zero-based)")
	cmd.Flags().IntVar(&opts.Column, "column", 0, "Cursor column (zero-based)")
	cmd.Flags().IntVar(&opts.SelectionStart, "selection-start", 0, "Selection start byte offset")
	cmd.Flags().IntVar(&opts.SelectionEnd, "selection-end", 0, "Selection end byte offset")
	cmd.Flags().StringVar(&opts.Language, "language", "", "Language id (default: detected from --file)")
	cmd.Flags().StringVar(&opts.HoverFile, "hover-file", "", "File under the mouse pointer")
	cmd.Flags().IntVar(&opts.HoverLine, "hover-line", 0, "Hover line (zero-based)")
	cmd.Flags().IntVar(&opts.HoverColumn, "hover-column", 0, "Hover column (zero-based)")
	cmd.Flags().StringVar(&opts.HoverText, "hover-text", "", "Text under the mouse pointer")
	cmd.Flags().String("session", "", "Current REPL session type (clj|cljs)")
	cmd.Flags().Bool("output-window-active", false, "Treat the REPL output window as the active editor")

	_ = cmd.RegisterFlagCompletionFunc("session", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"clj", "cljs"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runResult is the JSON shape of a run.
type runResult struct {
	Evaluated bool         `json:"evaluated"`
	Result    *repl.Result `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func runRun(cmd *cobra.Command, codeOrKey *string, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	provider, err := opts.Provider()
	if err != nil {
		return err
	}

	pipeline, cleanup := cmdCtx.NewPipeline(nil)
	defer cleanup()

	res, err := pipeline.Runner.Run(contextOrBackground(cmd), snippet.Invocation{
		CodeOrKey: codeOrKey,
		Scopes:    cmdCtx.Cfg.Scopes(),
		Context:   provider,
		Session:   cmdCtx.Cfg.Session,
	})

	if r.EffectiveMode() == output.ModeJSON {
		out := runResult{Evaluated: res != nil, Result: res}
		if err != nil {
			out.Error = err.Error()
		}
		if jerr := r.JSON(out); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}
