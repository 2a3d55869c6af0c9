package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// snippetsKey holds the list of snippets a config file contributes to its scope.
const snippetsKey = "snippets"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
	lastOptions    LoadOptions
)

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// command inputs rather than configuration.
var flagKeys = map[string]string{
	"verbose":              "verbose",
	"output":               "output",
	"log-level":            "log_level",
	"state":                "state_path",
	"session":              "session.type",
	"output-window-active": "session.output_window_active",
	"addr":                 "serve.addr",
}

// LoadOptions locates the configuration files.
type LoadOptions struct {
	// ConfigFile is an explicit workspace config file. Its directory becomes
	// the workspace root unless WorkspaceDir is set.
	ConfigFile string
	// WorkspaceDir overrides the upward search for the workspace root.
	WorkspaceDir string
	// FolderDir is the workspace folder; defaults to the working directory.
	FolderDir string
	// GlobalFile overrides the user-level config file location.
	GlobalFile string
	// Flags are the parsed command flags; only changed flags are applied.
	Flags *pflag.FlagSet
}

// workspaceFileIn returns the workspace config file in dir, or "".
func workspaceFileIn(dir string) string {
	for _, name := range []string{WorkspaceFile, WorkspaceFileAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a workspace config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if workspaceFileIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// GlobalConfigPath returns the user-level config file location.
func GlobalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
}

func absOrClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
	lastOptions = LoadOptions{}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"state_path":                  DefaultStateFile,
		"output":                      DefaultOutput,
		"verbose":                     false,
		"log_level":                   DefaultLogLevel,
		"serve.addr":                  DefaultServeAddr,
		"session.type":                "",
		"repl.targets.clj.type":       "nrepl",
		"repl.targets.clj.port_file":  DefaultPortFile,
		"repl.targets.cljs.type":      "nrepl",
		"repl.targets.cljs.port_file": DefaultCljsPort,
	}
}

// LoadConfig loads configuration from files, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > folder file > workspace file > global file > defaults
func LoadConfig(opts LoadOptions) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")
	lastOptions = opts

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}

	// Workspace root: explicit dir > explicit file's dir > upward search > CWD
	var workspaceRoot, workspaceFile string
	switch {
	case opts.WorkspaceDir != "":
		workspaceRoot = absOrClean(opts.WorkspaceDir)
	case opts.ConfigFile != "":
		workspaceRoot = filepath.Dir(absOrClean(opts.ConfigFile))
	default:
		workspaceRoot = findProjectRootUpward(cwd)
		if workspaceRoot == "" {
			workspaceRoot = cwd
		}
	}
	if opts.ConfigFile != "" {
		workspaceFile = absOrClean(opts.ConfigFile)
	} else {
		workspaceFile = workspaceFileIn(workspaceRoot)
	}

	folderRoot := cwd
	if opts.FolderDir != "" {
		folderRoot = absOrClean(opts.FolderDir)
	}

	globalFile := opts.GlobalFile
	if globalFile == "" {
		globalFile = GlobalConfigPath()
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config files, lowest precedence first. Each file's snippets
	// list belongs to that file's scope and is read separately, so a
	// higher file never replaces a lower file's snippets.
	var files []string
	var scoped SnippetsConfig
	if globalFile != "" {
		if _, err := os.Stat(globalFile); err == nil {
			if scoped.Global, err = loadConfigFile(globalFile); err != nil {
				return nil, err
			}
			files = append(files, globalFile)
		}
	}
	if workspaceFile != "" {
		var err error
		if scoped.Workspace, err = loadConfigFile(workspaceFile); err != nil {
			return nil, err
		}
		files = append(files, workspaceFile)
	}
	folderFile := filepath.Join(folderRoot, FolderFile)
	if _, err := os.Stat(folderFile); err == nil {
		if scoped.WorkspaceFolder, err = loadConfigFile(folderFile); err != nil {
			return nil, err
		}
		files = append(files, folderFile)
	}
	configFileUsed = workspaceFile

	// 3. Load environment variables (REPLSNIP_ prefix)
	// Transform: REPLSNIP_SESSION__TYPE -> session.type
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, envNestDelimiter, ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config files)
	var flagStatePath string
	if flags := opts.Flags; flags != nil {
		if flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" && v != ":memory:" {
				flagStatePath = absOrClean(v)
			}
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := unmarshal(k, "", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Snippets = scoped

	// 6. Resolve paths against the workspace root
	cfg.WorkspaceRoot = workspaceRoot
	cfg.FolderRoot = folderRoot
	cfg.Files = files

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, workspaceRoot)
	}

	for name, target := range cfg.Repl.Targets {
		target.Address = expandEnvVars(target.Address)
		target.DSN = expandEnvVars(target.DSN)
		target.PortFile = resolvePathRelativeTo(expandEnvVars(target.PortFile), workspaceRoot)
		cfg.Repl.Targets[name] = target
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// loadConfigFile merges path into the layered configuration and returns the
// snippets defined in that file alone.
func loadConfigFile(path string) ([]snippet.Definition, error) {
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	own := koanf.New(".")
	if err := own.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if v := own.Get(snippetsKey); v != nil {
		if _, ok := v.([]interface{}); !ok {
			return nil, fmt.Errorf("invalid %s in %s: expected a list, got %T", snippetsKey, path, v)
		}
	}
	var defs []snippet.Definition
	if err := unmarshal(own, snippetsKey, &defs); err != nil {
		return nil, fmt.Errorf("invalid %s in %s: %w", snippetsKey, path, err)
	}
	return defs, nil
}

func unmarshal(ko *koanf.Koanf, path string, out interface{}) error {
	return ko.UnmarshalWithConf(path, out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           out,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	})
}

// Reload loads the configuration again with the options of the last LoadConfig call.
func Reload() (*Config, error) {
	return LoadConfig(lastOptions)
}

// GetConfigFileUsed returns the path to the workspace config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithConfig returns a copy of ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(configKey{}).(*Config)
	return c
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
