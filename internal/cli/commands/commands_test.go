package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	clitestutil "github.com/leapstack-labs/replsnip/internal/cli/testutil"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/state"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enterWorkspace moves the test into dir with no global config.
func enterWorkspace(t *testing.T, dir string) string {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".xdg"))
	return dir
}

// isolatedWorkspace moves the test into an empty workspace and returns its directory.
func isolatedWorkspace(t *testing.T) string {
	t.Helper()
	return enterWorkspace(t, clitestutil.SetupWorkspace(t, ""))
}

const starlarkWorkspace = `output: json
session:
  type: star
repl:
  targets:
    star:
      type: starlark
snippets:
  - name: Add
    key: a
    snippet: 1 + 2
    repl: star
  - name: Namespace
    key: n
    snippet: ns
    ns: my.app
    repl: star
`

// loadWorkspace writes yaml as the workspace config and loads it.
func loadWorkspace(t *testing.T, yaml string) *config.Config {
	t.Helper()
	dir := enterWorkspace(t, clitestutil.SetupWorkspace(t, yaml))

	cfg, err := config.LoadConfig(config.LoadOptions{GlobalFile: filepath.Join(dir, "absent.yaml")})
	require.NoError(t, err)
	return cfg
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run [code-or-key]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{
		"file", "line", "column", "selection-start", "selection-end", "language",
		"hover-file", "hover-line", "hover-column", "hover-text", "session", "output-window-active",
	}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewListCommand(), "list", nil},
		{NewCheckCommand(), "check", nil},
		{NewTokensCommand(), "tokens", nil},
		{NewReplCommand(), "repl [target]", []string{"no-watch"}},
		{NewServeCommand(), "serve", []string{"addr", "no-watch"}},
		{NewHistoryCommand(), "history", []string{"limit"}},
		{NewDoctorCommand(), "doctor", []string{"offline", "timeout"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Example)
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestRun_SnippetByKey(t *testing.T) {
	loadWorkspace(t, starlarkWorkspace)

	out, err := execute(t, NewRunCommand(), "n")
	require.NoError(t, err)

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Evaluated)
	require.NotNil(t, res.Result)
	assert.Equal(t, `"my.app"`, res.Result.Value)
}

func TestRun_LiteralCodeUsesSessionForClojure(t *testing.T) {
	loadWorkspace(t, starlarkWorkspace)

	out, err := execute(t, NewRunCommand(), "$line * 10", "--language", "clojure", "--line", "4")
	require.NoError(t, err)

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Result)
	assert.Equal(t, "40", res.Result.Value)
}

func TestRun_InterpolatesDocumentContext(t *testing.T) {
	cfg := loadWorkspace(t, starlarkWorkspace)

	src := "(ns my.app)\n\n(defn greet [name] (str \"hi \" name))\n"
	file := filepath.Join(cfg.WorkspaceRoot, "app.clj")
	require.NoError(t, os.WriteFile(file, []byte(src), 0600))

	out, err := execute(t, NewRunCommand(), `"$top-level-defined-symbol in " + ns`, "--file", file, "--line", "2", "--column", "3")
	require.NoError(t, err)

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Result)
	assert.Equal(t, `"greet in my.app"`, res.Result.Value)
	assert.Equal(t, "my.app", res.Result.NS)
}

func TestRun_BackendErrorIsReported(t *testing.T) {
	loadWorkspace(t, starlarkWorkspace)

	out, err := execute(t, NewRunCommand(), "undefined_name", "--language", "clojure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Evaluated)
	assert.Contains(t, res.Error, "undefined_name")
}

func TestRun_ConfigurationError(t *testing.T) {
	loadWorkspace(t, "output: json\nsnippets:\n  - key: x\n")

	_, err := execute(t, NewRunCommand(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, snippet.ErrConfiguration)
}

func TestRun_RecordsEvaluation(t *testing.T) {
	cfg := loadWorkspace(t, starlarkWorkspace)

	_, err := execute(t, NewRunCommand(), "a")
	require.NoError(t, err)

	store, err := state.Open(cfg.StatePath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	records, err := store.RecentEvaluations(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "star", records[0].Target)
	assert.Equal(t, "1 + 2", records[0].Code)
	assert.Equal(t, "3", records[0].Value)
}

func TestHistory_JSON(t *testing.T) {
	loadWorkspace(t, starlarkWorkspace)

	_, err := execute(t, NewRunCommand(), "a")
	require.NoError(t, err)
	_, err = execute(t, NewRunCommand(), "n")
	require.NoError(t, err)

	out, err := execute(t, NewHistoryCommand(), "--limit", "1")
	require.NoError(t, err)

	var records []state.EvaluationRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "ns", records[0].Code)
	assert.Equal(t, "my.app", records[0].NS)
}

func TestList_JSON(t *testing.T) {
	loadWorkspace(t, starlarkWorkspace)

	out, err := execute(t, NewListCommand())
	require.NoError(t, err)

	var infos []snippetInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "a: Add (star)", infos[0].Label)
	assert.Equal(t, "my.app", infos[1].NS)
}

func TestList_Markdown(t *testing.T) {
	loadWorkspace(t, "output: markdown\nsnippets:\n  - name: Reset\n    key: r\n    snippet: (reset)\n")

	out, err := execute(t, NewListCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "# Snippets (1 total)")
	assert.Contains(t, out, "| r ")
	assert.Contains(t, out, "(reset)")
}

func TestList_Empty(t *testing.T) {
	loadWorkspace(t, "output: markdown\n")

	out, err := execute(t, NewListCommand())
	require.NoError(t, err)
	assert.Contains(t, out, snippet.NoSnippetsMessage)
}

func TestCheck(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		loadWorkspace(t, starlarkWorkspace)

		out, err := execute(t, NewCheckCommand())
		require.NoError(t, err)

		var res checkResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.True(t, res.Valid)
		assert.Equal(t, 2, res.Count)
		assert.Len(t, res.Files, 1)
	})

	t.Run("invalid", func(t *testing.T) {
		loadWorkspace(t, "output: json\nsnippets:\n  - key: x\n  - name: Ok\n    snippet: (ok)\n")

		out, err := execute(t, NewCheckCommand())
		require.Error(t, err)
		assert.ErrorIs(t, err, snippet.ErrConfiguration)

		var res checkResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.False(t, res.Valid)
		assert.Equal(t, 2, res.Count)
		require.Len(t, res.Errors, 1)
		assert.Nil(t, res.Errors[0].Name)
		assert.Equal(t, []string{"name", "snippet"}, res.Errors[0].MissingFields)
	})
}

func TestTokens_Markdown(t *testing.T) {
	loadWorkspace(t, "output: markdown\n")

	out, err := execute(t, NewTokensCommand())
	require.NoError(t, err)
	for _, tok := range snippet.Tokens() {
		assert.Contains(t, out, tok.Name)
	}
}

func TestRunOptions_Provider(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		opts := &RunOptions{Language: "clojure", HoverText: "foo", HoverLine: 3}
		p, err := opts.Provider()
		require.NoError(t, err)
		assert.Equal(t, "clojure", p.LanguageID())
		h, ok := p.Hover()
		require.True(t, ok)
		assert.Equal(t, "foo", h.Text)
		assert.Equal(t, 3, h.Pos.Line)
	})

	t.Run("missing file", func(t *testing.T) {
		opts := &RunOptions{File: filepath.Join(t.TempDir(), "nope.clj")}
		_, err := opts.Provider()
		assert.Error(t, err)
	})
}

func TestNewCommandContext_UsesStoredValues(t *testing.T) {
	isolatedWorkspace(t)
	cfg := &config.Config{OutputFormat: "json"}
	r := output.NewRendererWithTTY(new(bytes.Buffer), new(bytes.Buffer), false, output.ModeMarkdown)

	cmd := &cobra.Command{}
	cmd.SetContext(output.WithRenderer(config.WithConfig(t.Context(), cfg), r))
	cmdCtx := NewCommandContext(cmd)
	assert.Same(t, cfg, cmdCtx.Cfg)
	assert.Same(t, r, cmdCtx.Renderer)

	cmdCtx = NewCommandContext(&cobra.Command{})
	assert.NotSame(t, cfg, cmdCtx.Cfg)
	require.NotNil(t, cmdCtx.Renderer)
}
