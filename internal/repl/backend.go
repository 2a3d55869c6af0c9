// Package repl defines the evaluation backends snippets are sent to.
//
// A Backend evaluates code in one live REPL. Backends are created by type
// ("nrepl", "starlark", "sqlite", ...) through factories registered in init()
// functions, and addressed by REPL target name ("clj", "cljs", ...) through
// Targets.
package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultRepl is the REPL target used when no session is active.
const DefaultRepl = "clj"

// ErrUnknownTarget is returned when code is sent to a target with no configuration.
var ErrUnknownTarget = errors.New("unknown REPL target")

// Options controls how an evaluation is presented. Nil fields defer to the
// evaluator's defaults.
type Options struct {
	SendCodeToOutputWindow *bool `json:"evaluationSendCodeToOutputWindow,omitempty"`
	AddToHistory           *bool `json:"addToHistory,omitempty"`
}

// Result is what a backend reports for one evaluation.
type Result struct {
	Value string `json:"value"`
	Out   string `json:"out,omitempty"`
	Err   string `json:"err,omitempty"`
	NS    string `json:"ns,omitempty"`
	Ex    string `json:"ex,omitempty"`
}

// Backend evaluates code in a live REPL.
type Backend interface {
	// Eval evaluates code, optionally in namespace ns ("" means the backend's current one).
	Eval(ctx context.Context, code, ns string) (*Result, error)
	Close() error
}

// TargetConfig describes how to reach one REPL target.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Address  string            `koanf:"address"`
	PortFile string            `koanf:"port_file"`
	DSN      string            `koanf:"dsn"`
	Timeout  time.Duration     `koanf:"timeout"`
	Options  map[string]string `koanf:"options"`
}

// Factory opens a backend for a target configuration.
type Factory func(ctx context.Context, cfg TargetConfig, logger *slog.Logger) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a backend factory to the registry.
// Called by backend implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Available returns all registered backend types (sorted).
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a backend of cfg.Type.
func Open(ctx context.Context, cfg TargetConfig, logger *slog.Logger) (Backend, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("backend type not specified")
	}
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownBackendError{Type: cfg.Type, Available: Available()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(ctx, cfg, logger)
}

// UnknownBackendError is returned when an unknown backend type is requested.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend type %q\nAvailable backends: %v\nHint: Check repl.targets in replsnip.yaml", e.Type, e.Available)
}

// SessionState is the process-wide REPL session state, read once per invocation.
type SessionState struct {
	// Type is the active session's REPL target, empty when no session is active.
	Type string `json:"type,omitempty" koanf:"type"`
	// OutputWindowActive is true when the output window is the active REPL surface.
	OutputWindowActive bool `json:"outputWindowActive,omitempty" koanf:"output_window_active"`
}

// ReplType returns the REPL target for a document: the active session type
// for documents of the target language, DefaultRepl otherwise or when no
// session is active.
func (s SessionState) ReplType(isTargetLanguage bool) string {
	if isTargetLanguage && s.Type != "" {
		return s.Type
	}
	return DefaultRepl
}
