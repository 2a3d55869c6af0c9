package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent evaluations",
		Long: `Show the most recent evaluations recorded in the state database, newest first.

Every evaluation sent by run, repl or serve is recorded with its target,
namespace, code, value and error.`,
		Example: `  # Show the last 20 evaluations
  replsnip history

  # Show the last 5 as JSON
  replsnip history --limit 5 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of evaluations to show")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := state.Open(cmdCtx.Cfg.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	defer func() { _ = store.Close() }()

	records, err := store.RecentEvaluations(contextOrBackground(cmd), limit)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(records)
	case output.ModeMarkdown:
		r.Header(1, fmt.Sprintf("Evaluations (%d shown)", len(records)))
		if len(records) > 0 {
			r.Println(historyTable(records).RenderMarkdown())
		}
		return nil
	default:
		r.Header(1, fmt.Sprintf("Evaluations (%d shown)", len(records)))
		if len(records) == 0 {
			r.Muted("No evaluations recorded yet.")
			return nil
		}
		t := historyTable(records)
		t.SetStyle(table.StyleLight)
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Code", WidthMax: 60},
			{Name: "Result", WidthMax: 40},
			{Name: "Took", Align: text.AlignRight},
		})
		r.Println(t.Render())
		return nil
	}
}

func historyTable(records []state.EvaluationRecord) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"When", "Target", "NS", "Code", "Result", "Took"})
	for _, rec := range records {
		result := rec.Value
		if rec.Err != "" {
			result = "error: " + rec.Err
		}
		t.AppendRow(table.Row{
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.Target,
			rec.NS,
			oneLine(rec.Code),
			oneLine(result),
			rec.Duration.Round(time.Millisecond).String(),
		})
	}
	return t
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
