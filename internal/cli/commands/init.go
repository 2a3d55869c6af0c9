package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter replsnip.yaml",
		Long: `Create a replsnip.yaml workspace configuration with a few example snippets
and the default Clojure nREPL target.`,
		Example: `  # Initialize in current directory
  replsnip init

  # Initialize in another directory
  replsnip init path/to/project

  # Force overwrite existing config
  replsnip init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			return runInit(NewCommandContext(cmd).Renderer, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

type starterTarget struct {
	Type     string `yaml:"type"`
	PortFile string `yaml:"port_file"`
}

type starterConfig struct {
	Snippets []snippet.Definition `yaml:"snippets"`
	Repl     struct {
		Targets map[string]starterTarget `yaml:"targets"`
	} `yaml:"repl"`
	StatePath string `yaml:"state_path"`
}

func starter() starterConfig {
	var c starterConfig
	c.Snippets = []snippet.Definition{
		{Name: "Call current function", Key: "f", Snippet: "($current-fn)"},
		{Name: "Tap current form", Key: "t", Snippet: "(tap> $current-form)"},
		{Name: "Reload namespace", Key: "r", Snippet: "(require '$ns :reload)"},
		{Name: "Run test at cursor", Key: "T", Snippet: "(clojure.test/test-vars [#'$ns/$top-level-defined-symbol])"},
	}
	c.Repl.Targets = map[string]starterTarget{
		"clj":  {Type: "nrepl", PortFile: config.DefaultPortFile},
		"cljs": {Type: "nrepl", PortFile: config.DefaultCljsPort},
	}
	c.StatePath = config.DefaultStateFile
	return c
}

const starterHeader = `# replsnip workspace configuration.
# Snippet templates may use $line, $column, $file, $ns, $repl, $selection,
# $current-form, $top-level-form and more; run 'replsnip tokens' for the full list.
`

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.WorkspaceFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.WorkspaceFile)
	}

	var buf bytes.Buffer
	buf.WriteString(starterHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(starter()); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	r.StatusLine(configPath, "success", "")
	r.Println("")
	r.Success("replsnip workspace initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  replsnip list     View the configured snippets")
	r.Println("  replsnip run f    Run a snippet by key")
	r.Println("  replsnip repl     Open the REPL window")

	return nil
}
