package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/repl"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Category    string // "general", "snippet", "target"
}

// getConfigSchema returns the configuration schema definition.
// This is based on internal/cli/config/types.go and internal/snippet/definition.go.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "state_path", Type: "string", Default: config.DefaultStateFile, Description: "State database for menu memory and evaluation history", Category: "general"},
		{Name: "output", Type: "string", Default: config.DefaultOutput, Description: "Output format: auto, text, markdown, json", Category: "general"},
		{Name: "log_level", Type: "string", Default: config.DefaultLogLevel, Description: "Log level: debug, info, warn, error", Category: "general"},
		{Name: "session.type", Type: "string", Description: "Active REPL session type; empty means no session", Category: "general"},
		{Name: "session.output_window_active", Type: "bool", Default: "false", Description: "The output window is the active editor", Category: "general"},
		{Name: "serve.addr", Type: "string", Default: config.DefaultServeAddr, Description: "API server address", Category: "general"},
		{Name: "serve.shutdown_timeout", Type: "duration", Default: "5s", Description: "Graceful shutdown timeout", Category: "general"},

		{Name: "name", Type: "string", Description: "Menu name (required)", Category: "snippet"},
		{Name: "snippet", Type: "string", Description: "Code template with placeholders (required)", Category: "snippet"},
		{Name: "key", Type: "string", Description: "Key to run the snippet without the menu", Category: "snippet"},
		{Name: "ns", Type: "string", Description: "Namespace to evaluate in; defaults to the file's namespace", Category: "snippet"},
		{Name: "repl", Type: "string", Description: "REPL target; defaults to the session's", Category: "snippet"},
		{Name: "evaluation_send_code_to_output_window", Type: "bool", Description: "Echo the code to the output window", Category: "snippet"},

		{Name: "type", Type: "string", Description: "Backend type", Category: "target"},
		{Name: "address", Type: "string", Description: "nREPL host:port", Category: "target"},
		{Name: "port_file", Type: "string", Description: "File holding the nREPL port, relative to the workspace", Category: "target"},
		{Name: "dsn", Type: "string", Description: "Database connection string for SQL backends", Category: "target"},
		{Name: "timeout", Type: "duration", Description: "Evaluation timeout", Category: "target"},
		{Name: "options", Type: "map[string]string", Description: "Backend-specific options", Category: "target"},
	}
}

// generateConfigDocs generates the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "replsnip configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("replsnip reads, lowest precedence first, the global %s, the workspace %s, the workspace folder %s, %s environment variables and command-line flags.",
		InlineCode(filepath.Join("$XDG_CONFIG_HOME", config.GlobalConfigDir, config.GlobalConfigFile)),
		InlineCode(config.WorkspaceFile), InlineCode(config.FolderFile), InlineCode(config.EnvPrefix+"*")))

	fields := getConfigSchema()

	w.Header(2, "General Settings")
	w.Table([]string{"Field", "Type", "Default", "Description"}, fieldRows(fields, "general", true))

	w.Header(2, "Snippets")
	w.Paragraph("Each config file lists its snippets under `snippets`. The global file supplies the global scope, the workspace file the workspace scope and the folder file the workspace folder scope; the scopes are merged in that order. The legacy `custom_repl_command_snippets` list is used only when all three are empty.")
	w.Table([]string{"Field", "Type", "Description"}, fieldRows(fields, "snippet", false))

	w.Header(2, "REPL Targets")
	w.Paragraph(fmt.Sprintf("Targets are defined under `repl.targets`. Available backend types: %s.", joinCode(repl.Available())))
	w.Table([]string{"Field", "Type", "Description"}, fieldRows(fields, "target", false))

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", `# replsnip.yaml
snippets:
  - name: Reload namespace
    key: r
    snippet: (require '$ns :reload)
  - name: Describe table
    key: d
    repl: db
    snippet: SELECT * FROM pragma_table_info('$selection')

repl:
  targets:
    clj:
      type: nrepl
      port_file: .nrepl-port
    db:
      type: sqlite
      dsn: ${DATABASE_PATH}

state_path: .replsnip/state.db`)

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}

func fieldRows(fields []ConfigField, category string, withDefault bool) [][]string {
	var rows [][]string
	for _, f := range fields {
		if f.Category != category {
			continue
		}
		row := []string{InlineCode(f.Name), f.Type}
		if withDefault {
			defVal := "-"
			if f.Default != "" {
				defVal = InlineCode(f.Default)
			}
			row = append(row, defVal)
		}
		rows = append(rows, append(row, f.Description))
	}
	return rows
}

func joinCode(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += InlineCode(n)
	}
	return out
}
