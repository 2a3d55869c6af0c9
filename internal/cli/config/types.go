// Package config provides configuration management for the replsnip CLI.
//
// Configuration is layered, lowest to highest precedence:
//
//	defaults
//	global file       $XDG_CONFIG_HOME/replsnip/config.yaml
//	workspace file    replsnip.yaml, searched upward from the working directory
//	folder file       .replsnip.yaml in the workspace folder
//	environment       REPLSNIP_* (a double underscore separates nested keys)
//	flags             only flags set on the command line
package config

import (
	"time"

	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
)

// Config holds all CLI configuration options.
type Config struct {
	Snippets     SnippetsConfig       `koanf:"-"`
	Legacy       []snippet.Definition `koanf:"custom_repl_command_snippets"`
	Session      repl.SessionState    `koanf:"session"`
	Repl         ReplConfig           `koanf:"repl"`
	StatePath    string               `koanf:"state_path"`
	OutputFormat string               `koanf:"output"`
	Verbose      bool                 `koanf:"verbose"`
	LogLevel     string               `koanf:"log_level"`
	Serve        ServeConfig          `koanf:"serve"`

	// WorkspaceRoot is the directory relative paths resolve against.
	WorkspaceRoot string `koanf:"-"`
	// FolderRoot is the workspace folder the folder-scoped file was read from.
	FolderRoot string `koanf:"-"`
	// Files lists the config files that were loaded, in load order.
	Files []string `koanf:"-"`
}

// SnippetsConfig holds snippet definitions per configuration scope: the
// snippets list of the global, workspace and folder file respectively.
type SnippetsConfig struct {
	Global          []snippet.Definition
	Workspace       []snippet.Definition
	WorkspaceFolder []snippet.Definition
}

// ReplConfig holds the REPL targets code can be sent to.
type ReplConfig struct {
	Targets map[string]repl.TargetConfig `koanf:"targets"`
}

// ServeConfig holds configuration for the HTTP API.
type ServeConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Scopes returns the snippet scopes the registry is built from.
func (c *Config) Scopes() snippet.Scopes {
	return snippet.Scopes{
		Global:          c.Snippets.Global,
		Workspace:       c.Snippets.Workspace,
		WorkspaceFolder: c.Snippets.WorkspaceFolder,
		Legacy:          c.Legacy,
	}
}

// Config file names.
const (
	GlobalConfigDir  = "replsnip"
	GlobalConfigFile = "config.yaml"
	WorkspaceFile    = "replsnip.yaml"
	WorkspaceFileAlt = "replsnip.yml"
	FolderFile       = ".replsnip.yaml"
	EnvPrefix        = "REPLSNIP_"
	envNestDelimiter = "__"
	DefaultStateFile = ".replsnip/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "warn"
	DefaultServeAddr = "127.0.0.1:7888"
	DefaultPortFile  = ".nrepl-port"
	DefaultCljsPort  = ".shadow-cljs/nrepl.port"
)
