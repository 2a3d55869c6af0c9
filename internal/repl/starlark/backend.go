// Package starlark is an in-process Backend evaluating Starlark.
//
// Globals persist between evaluations like in an interactive session. The
// namespace of an evaluation is visible to the code as the global "ns", and
// the target's options as the dict "options".
package starlark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/replsnip/internal/repl"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultNamespace is reported when an evaluation names no namespace.
const DefaultNamespace = "user"

func init() {
	repl.Register("starlark", func(_ context.Context, cfg repl.TargetConfig, logger *slog.Logger) (repl.Backend, error) {
		return New(cfg.Options, logger), nil
	})
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Backend is a Starlark session.
type Backend struct {
	logger *slog.Logger

	mu      sync.Mutex
	globals starlark.StringDict
}

var _ repl.Backend = (*Backend)(nil)

// New creates a session. options are exposed to code as the "options" dict.
func New(options map[string]string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := starlark.NewDict(len(options))
	for _, k := range keys {
		_ = opts.SetKey(starlark.String(k), starlark.String(options[k]))
	}
	opts.Freeze()

	return &Backend{
		logger:  logger,
		globals: starlark.StringDict{"options": opts},
	}
}

// Eval runs code. A single expression reports its value; statements report
// nothing and may define globals for later evaluations.
func (b *Backend) Eval(ctx context.Context, code, ns string) (*repl.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ns == "" {
		ns = DefaultNamespace
	}
	b.globals["ns"] = starlark.String(ns)

	var out strings.Builder
	thread := &starlark.Thread{
		Name: "repl",
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteString(msg)
			out.WriteString("\n")
		},
	}
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	res := &repl.Result{NS: ns}
	value, err := b.eval(thread, code)
	res.Out = out.String()
	if err != nil {
		res.Err = errorText(err)
		b.logger.Debug("starlark evaluation failed", slog.String("error", err.Error()))
		return res, fmt.Errorf("starlark: %w", err)
	}
	if value != nil && value != starlark.None {
		res.Value = value.String()
	}
	return res, nil
}

func (b *Backend) eval(thread *starlark.Thread, code string) (starlark.Value, error) {
	if expr, err := fileOptions.ParseExpr("<repl>", code, 0); err == nil {
		return starlark.EvalExprOptions(fileOptions, thread, expr, b.globals)
	}
	f, err := fileOptions.Parse("<repl>", code, 0)
	if err != nil {
		return nil, err
	}
	return nil, starlark.ExecREPLChunk(f, thread, b.globals)
}

// Close is a no-op; the session lives in memory.
func (b *Backend) Close() error { return nil }

func errorText(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}
