package commands

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/server"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/state"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the snippet API for editors",
		Long: `Start an HTTP API editors call to run snippets.

Endpoints:
  GET  /health          Server status and REPL targets
  GET  /api/snippets    Configured snippets
  GET  /api/tokens      Supported placeholders
  POST /api/run         Run a snippet key or code against an editing context

The API has no menu: a run request without codeOrKey evaluates nothing.
Configuration files are watched and snippets reloaded when they change.`,
		Example: `  # Serve on the default address
  replsnip serve

  # Serve on another port
  replsnip serve --addr 127.0.0.1:9000

  # Run a snippet through the API
  curl -s localhost:7888/api/run -d '{"codeOrKey": "r", "context": {"file": "src/app.clj"}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, !noWatch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultServeAddr, "Address to listen on")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload configuration when files change")
	return cmd
}

func runServe(cmd *cobra.Command, watch bool) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets := repl.NewTargets(cfg.Repl.Targets, cmdCtx.Logger)
	defer func() { _ = targets.Close() }()

	srvCfg := server.Config{
		Addr:            cfg.Serve.Addr,
		ShutdownTimeout: cfg.Serve.ShutdownTimeout,
		Targets:         targets,
		Scopes:          cfg.Scopes(),
		Session:         cfg.Session,
		Logger:          cmdCtx.Logger,
	}

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		cmdCtx.Logger.Warn("state store unavailable", slog.String("path", cfg.StatePath), slog.String("error", err.Error()))
	} else {
		defer func() { _ = store.Close() }()
		srvCfg.Journal = store
	}

	if watch {
		srvCfg.WatchFiles = cfg.WatchedFiles("")
		srvCfg.Reload = reloadScopes
	}

	r := cmdCtx.Renderer
	r.Success("Serving snippets on http://" + srvCfg.Addr)
	r.Muted("Press Ctrl+C to stop")

	return server.NewServer(srvCfg).Serve(ctx)
}

func reloadScopes() (snippet.Scopes, error) {
	cfg, err := config.Reload()
	if err != nil {
		return snippet.Scopes{}, err
	}
	return cfg.Scopes(), nil
}
