package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/cobra"
)

// NewTokensCommand creates the tokens command.
func NewTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "Show the placeholders available in snippets",
		Long: `Show every placeholder that is replaced in snippet text before evaluation.
Placeholders with no value at the cursor are replaced by "undefined".`,
		Example: `  # Show the placeholders as a table
  replsnip tokens

  # Show them as JSON
  replsnip tokens --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContext(cmd).Renderer
			tokens := snippet.Tokens()

			if r.EffectiveMode() == output.ModeJSON {
				type tokenInfo struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				}
				infos := make([]tokenInfo, 0, len(tokens))
				for _, tok := range tokens {
					infos = append(infos, tokenInfo{Name: tok.Name, Description: tok.Description})
				}
				return r.JSON(infos)
			}

			t := table.NewWriter()
			t.AppendHeader(table.Row{"Placeholder", "Replaced with"})
			for _, tok := range tokens {
				t.AppendRow(table.Row{tok.Name, tok.Description})
			}
			if r.EffectiveMode() == output.ModeMarkdown {
				r.Println(t.RenderMarkdown())
				return nil
			}
			t.SetStyle(table.StyleLight)
			r.Println(t.Render())
			return nil
		},
	}
}
