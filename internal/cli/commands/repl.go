package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/editctx"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/cobra"
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "repl [target]",
		Short: "Start an interactive REPL window",
		Long: `Start an interactive REPL window connected to a configured target.

Lines are evaluated on the target. The window counts as the active output
window, so snippets run from it with .run do not echo their code by default.
Configuration files are watched and reloaded when they change.`,
		Example: `  # Connect to the default Clojure target
  replsnip repl

  # Connect to a named target
  replsnip repl db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return runRepl(cmd, target, !noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload configuration when files change")
	return cmd
}

// replSession is the state of one interactive REPL window.
type replSession struct {
	pipeline *Pipeline
	out      io.Writer
	errOut   io.Writer

	mu     sync.Mutex
	cfg    *config.Config
	target string
}

func (s *replSession) config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *replSession) setConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *replSession) currentTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// snippetKeys returns the keys of the currently configured snippets.
func (s *replSession) snippetKeys(string) []string {
	reg, err := snippet.Build(s.config().Scopes(), snippet.Defaults{Repl: s.currentTarget()})
	if err != nil {
		return nil
	}
	var keys []string
	for _, e := range reg.Entries() {
		if e.Definition.Key != "" {
			keys = append(keys, e.Definition.Key)
		}
	}
	return keys
}

// readlineHistory adds evaluated code to the readline history.
type readlineHistory struct {
	rl *readline.Instance
}

func (h *readlineHistory) Add(code string) error {
	if h.rl == nil {
		return nil
	}
	return h.rl.SaveHistory(code)
}

func runRepl(cmd *cobra.Command, target string, watch bool) error {
	ctx, cancel := context.WithCancel(contextOrBackground(cmd))
	defer cancel()

	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	if target == "" {
		target = cfg.Session.ReplType(true)
	}

	history := &readlineHistory{}
	pipeline, cleanup := cmdCtx.NewPipeline(history)
	defer cleanup()

	s := &replSession{
		pipeline: pipeline,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		cfg:      cfg,
		target:   target,
	}

	// Setup history file (project-local)
	var historyFile string
	if cfg.StatePath != "" && cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cfg.StatePath), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 pipeline.Window.Prompt(),
		HistoryFile:            historyFile,
		DisableAutoSaveHistory: true,
		AutoComplete:           s.completer(),
		InterruptPrompt:        "^C",
		EOFPrompt:              ".quit",
		Stdout:                 cmd.OutOrStdout(),
		Stderr:                 cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	history.rl = rl
	pipeline.Window.OnPrompt = rl.SetPrompt

	if watch {
		go func() {
			err := config.Watch(ctx, cfg.WatchedFiles(""), func() {
				newCfg, err := config.Reload()
				if err != nil {
					pipeline.Window.Error(fmt.Sprintf("config reload failed: %v", err))
					return
				}
				s.setConfig(newCfg)
				cmdCtx.Logger.Info("configuration reloaded", slog.Int("files", len(newCfg.Files)))
			}, cmdCtx.Logger)
			if err != nil {
				cmdCtx.Logger.Warn("config watch stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// Print welcome message
	_, _ = fmt.Fprintf(s.out, "replsnip REPL (target: %s)\n", target)
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := s.handleDotCommand(ctx, line); quit {
				break
			}
			continue
		}

		s.evaluate(ctx, line)
	}

	return nil
}

// evaluate sends typed code to the current target. The code is already on
// screen so it is not echoed again.
func (s *replSession) evaluate(ctx context.Context, code string) {
	echo := false
	window := s.pipeline.Window
	_, err := s.pipeline.Evaluator.EvaluateInOutputWindow(ctx, code, s.currentTarget(), window.NS(), repl.Options{
		SendCodeToOutputWindow: &echo,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		window.Error(err.Error())
	}
	window.AppendPrompt()
}

// runSnippet runs a snippet through the pipeline with the window as the
// active editor. An empty key shows the menu.
func (s *replSession) runSnippet(ctx context.Context, key string) {
	var codeOrKey *string
	if key != "" {
		codeOrKey = &key
	}
	cfg := s.config()
	ns := s.pipeline.Window.NS()

	_, err := s.pipeline.Runner.Run(ctx, snippet.Invocation{
		CodeOrKey: codeOrKey,
		Scopes:    cfg.Scopes(),
		Context:   &editctx.Static{Language: editctx.LanguageClojure, NS: &ns},
		Session:   repl.SessionState{Type: s.currentTarget(), OutputWindowActive: true},
	})
	// Configuration errors were already shown by the runner.
	if err != nil && !errors.Is(err, snippet.ErrConfiguration) {
		s.pipeline.Window.Error(err.Error())
	}
}

func (s *replSession) handleDotCommand(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".run":
		key := ""
		if len(parts) > 1 {
			key = strings.Join(parts[1:], " ")
		}
		s.runSnippet(ctx, key)

	case ".snippets":
		s.printSnippets()

	case ".target":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "Current target: %s (available: %s)\n",
				s.currentTarget(), strings.Join(s.pipeline.Targets.Names(), ", "))
			return false
		}
		s.mu.Lock()
		s.target = parts[1]
		s.mu.Unlock()
		_, _ = fmt.Fprintf(s.out, "Target: %s\n", parts[1])

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (s *replSession) printSnippets() {
	reg, err := snippet.Build(s.config().Scopes(), snippet.Defaults{Repl: s.currentTarget()})
	if err != nil {
		s.pipeline.Window.Error(err.Error())
		return
	}
	if reg.Len() == 0 {
		_, _ = fmt.Fprintln(s.out, snippet.NoSnippetsMessage)
		return
	}
	for _, label := range reg.Labels() {
		_, _ = fmt.Fprintf(s.out, "  %s\n", label)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .run [key]       Run the snippet bound to key, or choose one from a menu
  .snippets        List configured snippets
  .target [name]   Show or switch the REPL target
  .quit / .exit    Exit the REPL

Tips:
  - Anything else is evaluated on the current target
  - Use arrow keys to navigate history
  - Tab completion works for dot-commands and snippet keys
`
	_, _ = fmt.Fprintln(w, help)
}

// completer completes dot-commands and snippet keys. Keys are read on every
// completion so configuration reloads are picked up.
func (s *replSession) completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".run", readline.PcItemDynamic(s.snippetKeys)),
		readline.PcItem(".snippets"),
		readline.PcItem(".target", readline.PcItemDynamic(func(string) []string {
			return s.pipeline.Targets.Names()
		})),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
