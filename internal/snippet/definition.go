// Package snippet resolves configured REPL command snippets into code and
// sends it to a REPL.
//
// One invocation runs the pipeline
//
//	Build (merge + validate) -> Select -> Interpolate + DeriveOptions -> evaluate
//
// and computes everything fresh: no registry state outlives a call to Runner.Run.
package snippet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SettingName is the configuration key users are pointed at in messages.
const SettingName = "custom_repl_command_snippets"

// ErrConfiguration matches errors caused by invalid snippet definitions.
var ErrConfiguration = errors.New("invalid snippet configuration")

// Definition is one configured snippet, as supplied by a configuration source.
type Definition struct {
	Name    string `koanf:"name" json:"name,omitempty" yaml:"name"`
	Snippet string `koanf:"snippet" json:"snippet,omitempty" yaml:"snippet"`
	Key     string `koanf:"key" json:"key,omitempty" yaml:"key,omitempty"`
	NS      string `koanf:"ns" json:"ns,omitempty" yaml:"ns,omitempty"`
	Repl    string `koanf:"repl" json:"repl,omitempty" yaml:"repl,omitempty"`

	SendCodeToOutputWindow *bool `koanf:"evaluation_send_code_to_output_window" json:"evaluationSendCodeToOutputWindow,omitempty" yaml:"evaluation_send_code_to_output_window,omitempty"`
}

// Scopes are the configuration tiers snippets are read from, plus the legacy
// single-scope setting used only when all three tiers are empty.
type Scopes struct {
	Global          []Definition
	Workspace       []Definition
	WorkspaceFolder []Definition
	Legacy          []Definition
}

// missingFields returns the names of required fields d lacks.
func (d Definition) missingFields() []string {
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Snippet == "" {
		missing = append(missing, "snippet")
	}
	return missing
}

// ValidationError describes one invalid definition.
// Name is nil when the definition has no name.
type ValidationError struct {
	Name          *string  `json:"name,omitempty"`
	MissingFields []string `json:"keys"`
}

func (e ValidationError) Error() string {
	name := "<unnamed>"
	if e.Name != nil {
		name = *e.Name
	}
	return fmt.Sprintf("snippet %s: missing %s", name, strings.Join(e.MissingFields, ", "))
}

// ConfigError aggregates every invalid definition found while building a registry.
type ConfigError struct {
	Errors []ValidationError
}

// Error renders the single user-facing message listing every offending entry.
func (e *ConfigError) Error() string {
	details, err := json.Marshal(e.Errors)
	if err != nil {
		details = []byte(fmt.Sprint(e.Errors))
	}
	return fmt.Sprintf("Errors found in the `%s` setting. Values missing for: %s", SettingName, details)
}

// Is makes errors.Is(err, ErrConfiguration) true for a *ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}
