package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured snippets",
		Long: `List all configured snippets from every configuration scope, merged in
order: global, workspace, workspace folder.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all snippets (auto-detect output format)
  replsnip list

  # List snippets as JSON
  replsnip list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

// snippetInfo is the listing shape of a snippet.
type snippetInfo struct {
	Label                  string `json:"label"`
	Key                    string `json:"key,omitempty"`
	Name                   string `json:"name"`
	NS                     string `json:"ns,omitempty"`
	Repl                   string `json:"repl"`
	Snippet                string `json:"snippet"`
	SendCodeToOutputWindow *bool  `json:"evaluationSendCodeToOutputWindow,omitempty"`
}

func toSnippetInfo(e *snippet.Entry) snippetInfo {
	info := snippetInfo{
		Label:                  e.Label,
		Key:                    e.Definition.Key,
		Name:                   e.Definition.Name,
		Repl:                   e.Repl,
		Snippet:                e.Definition.Snippet,
		SendCodeToOutputWindow: e.Definition.SendCodeToOutputWindow,
	}
	if e.NS != nil {
		info.NS = *e.NS
	}
	return info
}

func runList(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	reg, err := cmdCtx.registry()
	if err != nil {
		return err
	}

	entries := reg.Entries()
	infos := make([]snippetInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, toSnippetInfo(e))
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(infos)
	case output.ModeMarkdown:
		return listMarkdown(infos, r)
	default:
		return listText(infos, r)
	}
}

func snippetTable(infos []snippetInfo) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Key", "Name", "Repl", "NS", "Snippet"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Key, info.Name, info.Repl, info.NS, info.Snippet})
	}
	return t
}

// listText outputs snippets as a styled table.
func listText(infos []snippetInfo, r *output.Renderer) error {
	r.Header(1, fmt.Sprintf("Snippets (%d total)", len(infos)))
	if len(infos) == 0 {
		r.Muted(snippet.NoSnippetsMessage)
		return nil
	}
	t := snippetTable(infos)
	t.SetStyle(table.StyleLight)
	r.Println(t.Render())
	return nil
}

// listMarkdown outputs snippets as a markdown table.
func listMarkdown(infos []snippetInfo, r *output.Renderer) error {
	r.Header(1, fmt.Sprintf("Snippets (%d total)", len(infos)))
	if len(infos) == 0 {
		r.Println(snippet.NoSnippetsMessage)
		return nil
	}
	r.Println(snippetTable(infos).RenderMarkdown())
	return nil
}
