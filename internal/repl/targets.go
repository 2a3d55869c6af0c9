package repl

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Targets maps REPL target names to backends, opening each one on first use.
type Targets struct {
	configs map[string]TargetConfig
	logger  *slog.Logger

	mu     sync.Mutex
	opened map[string]Backend
}

// NewTargets creates a target set from configuration.
func NewTargets(configs map[string]TargetConfig, logger *slog.Logger) *Targets {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Targets{
		configs: configs,
		logger:  logger,
		opened:  make(map[string]Backend),
	}
}

// Names returns the configured target names (sorted).
func (t *Targets) Names() []string {
	names := make([]string, 0, len(t.configs))
	for name := range t.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set installs an already-open backend for a target.
// Used by embedding programs and tests.
func (t *Targets) Set(name string, b Backend) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opened[name] = b
}

// Get returns the backend for name, opening it if needed.
func (t *Targets) Get(ctx context.Context, name string) (Backend, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.opened[name]; ok {
		return b, nil
	}
	cfg, ok := t.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}

	t.logger.Debug("opening REPL backend", slog.String("target", name), slog.String("type", cfg.Type))
	b, err := Open(ctx, cfg, t.logger.With(slog.String("target", name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open REPL target %q: %w", name, err)
	}
	t.opened[name] = b
	return b, nil
}

// Close closes every opened backend.
func (t *Targets) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for name, b := range t.opened {
		if err := b.Close(); err != nil {
			t.logger.Warn("failed to close REPL backend", slog.String("target", name), slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
		delete(t.opened, name)
	}
	return firstErr
}
