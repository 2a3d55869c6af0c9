package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/replsnip/internal/cli/output"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks if the configuration is valid.
// Snippet definitions are validated when the registry is built, not here.
func (c *Config) Validate() error {
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if !logLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}

	names := make([]string, 0, len(c.Repl.Targets))
	for name := range c.Repl.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		target := c.Repl.Targets[name]
		if target.Type == "" {
			return fmt.Errorf("repl target %q: type is required", name)
		}
		if target.Timeout < 0 {
			return fmt.Errorf("repl target %q: timeout must not be negative", name)
		}
	}
	return nil
}
