package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/picker"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/state"
	"github.com/spf13/cobra"

	// Register evaluation backends via init()
	_ "github.com/leapstack-labs/replsnip/internal/repl/nrepl"
	_ "github.com/leapstack-labs/replsnip/internal/repl/sqlrepl"
	_ "github.com/leapstack-labs/replsnip/internal/repl/starlark"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from what the root command stored
// in cmd's context, falling back to the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := contextOrBackground(cmd)
	cfg := config.FromContext(ctx)
	if cfg == nil {
		cfg = getConfig()
	}
	logger := config.GetLogger(ctx)
	r := output.FromContext(ctx)
	if r == nil {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Pipeline is the snippet pipeline wired to the configured REPL targets.
type Pipeline struct {
	Runner    *snippet.Runner
	Window    *output.Window
	Evaluator *repl.Evaluator
	Targets   *repl.Targets
	// Store is nil when the state database could not be opened.
	Store *state.Store
}

// NewPipeline wires the pipeline. history may be nil.
// Returns the pipeline and a cleanup function that must be called (typically via defer).
func (c *CommandContext) NewPipeline(history repl.History) (*Pipeline, func()) {
	window := output.NewWindow(c.Renderer)
	targets := repl.NewTargets(c.Cfg.Repl.Targets, c.Logger)

	evaluator := &repl.Evaluator{
		Targets: targets,
		Window:  window,
		History: history,
		Logger:  c.Logger,
	}

	// The store only adds pick memory and the journal; run without it if it fails.
	store, err := state.Open(c.Cfg.StatePath)
	if err != nil {
		c.Logger.Warn("state store unavailable", slog.String("path", c.Cfg.StatePath), slog.String("error", err.Error()))
		store = nil
	}

	var memory picker.Memory
	if store != nil {
		evaluator.Journal = store
		memory = store
	}

	runner := &snippet.Runner{
		Picker:    picker.New(memory, c.Logger),
		Notifier:  window,
		Evaluator: evaluator,
		Output:    window,
		Logger:    c.Logger,
	}

	cleanup := func() {
		if err := targets.Close(); err != nil {
			c.Logger.Debug("failed to close targets", slog.String("error", err.Error()))
		}
		if store != nil {
			_ = store.Close()
		}
	}

	return &Pipeline{
		Runner:    runner,
		Window:    window,
		Evaluator: evaluator,
		Targets:   targets,
		Store:     store,
	}, cleanup
}

// registry builds the snippet registry as a Clojure document with no namespace would see it.
func (c *CommandContext) registry() (*snippet.Registry, error) {
	return snippet.Build(c.Cfg.Scopes(), snippet.Defaults{Repl: c.Cfg.Session.ReplType(true)})
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise loads defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig(config.LoadOptions{})
	if err != nil {
		cwd, _ := os.Getwd()
		return &config.Config{
			StatePath:     config.DefaultStateFile,
			OutputFormat:  os.Getenv(config.EnvPrefix + "OUTPUT"),
			LogLevel:      config.DefaultLogLevel,
			WorkspaceRoot: cwd,
			FolderRoot:    cwd,
		}
	}
	return cfg
}

// contextOrBackground keeps commands usable when executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
