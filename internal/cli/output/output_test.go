package output_test

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/cli/testutil"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want output.OutputMode
	}{
		{"", output.ModeAuto},
		{"auto", output.ModeAuto},
		{"TEXT", output.ModeText},
		{"md", output.ModeMarkdown},
		{"markdown", output.ModeMarkdown},
		{" json ", output.ModeJSON},
		{"yaml", output.ModeAuto},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, output.Mode(tt.in), tt.in)
	}
}

func TestParseMode(t *testing.T) {
	for _, ok := range []string{"", "auto", "Auto", "text", "md", "json"} {
		_, err := output.ParseMode(ok)
		assert.NoError(t, err, ok)
	}
	_, err := output.ParseMode("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}

func TestRenderer_EffectiveMode(t *testing.T) {
	assert.Equal(t, output.ModeMarkdown, testutil.NewTestRendererAuto().EffectiveMode())
	assert.Equal(t, output.ModeText, testutil.NewTestRenderer(output.ModeAuto, true).EffectiveMode())
	assert.Equal(t, output.ModeJSON, testutil.NewTestRendererJSON().EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()

	tr.Header(1, "Snippets")
	tr.KeyValue("Files", "replsnip.yaml")
	tr.StatusLine("broken", "error", "missing name")
	tr.Success("done")

	out := tr.Output()
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertOutputMode(t, tr, output.ModeMarkdown)
	testutil.AssertContains(t, out, "# Snippets")
	testutil.AssertContains(t, out, "✗ broken  missing name")
	testutil.AssertContains(t, out, "✓ done")
}

func TestRenderer_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	require.NoError(t, tr.JSON(map[string]int{"count": 2}))
	assert.JSONEq(t, `{"count": 2}`, tr.Output())
}

func TestWindow_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	w := output.NewWindow(tr.Renderer)

	assert.Equal(t, "user", w.NS())

	w.AppendCode("(+ 1 2)")
	w.AppendResult(&repl.Result{Value: "3", Out: "printed\n", Err: "warning\n", NS: "my.app"})
	w.AppendPrompt()

	assert.Equal(t, "my.app", w.NS())
	assert.Equal(t, "my.app=> ", w.Prompt())

	out := tr.Output()
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertNoANSI(t, out)
	assert.True(t, strings.HasPrefix(out, "```clojure\n(+ 1 2)\n```\nprinted\nwarning\n3\n"), out)
	testutil.AssertContains(t, out, "my.app=>")
}

func TestWindow_ResultWithException(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	w := output.NewWindow(tr.Renderer)

	w.AppendResult(&repl.Result{Ex: "class clojure.lang.ExceptionInfo"})
	assert.Equal(t, "; class clojure.lang.ExceptionInfo\n", tr.Output())

	tr.Reset()
	w.AppendResult(nil)
	assert.Empty(t, tr.Output())
	assert.Empty(t, tr.ErrorOutput())
	assert.Equal(t, "user", w.NS())
}

func TestWindow_JSONIsQuiet(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	w := output.NewWindow(tr.Renderer)

	w.Append("text")
	w.AppendCode("(x)")
	w.AppendResult(&repl.Result{Value: "1", NS: "a.b"})
	w.AppendPrompt()
	w.Info("note")
	w.Error("bad")

	assert.Empty(t, tr.Output())
	assert.Equal(t, "a.b", w.NS())
	errOut := tr.ErrorOutput()
	testutil.AssertContains(t, errOut, "note")
	testutil.AssertContains(t, errOut, "✗ bad")
	testutil.AssertNotContains(t, errOut, "(x)")
}

func TestWindow_OnPrompt(t *testing.T) {
	tr := testutil.NewTestRendererText()
	w := output.NewWindow(tr.Renderer)

	var prompts []string
	w.OnPrompt = func(p string) { prompts = append(prompts, p) }

	w.AppendResult(&repl.Result{NS: "x.y"})
	w.AppendPrompt()

	assert.Equal(t, []string{"x.y=> "}, prompts)
	testutil.AssertNotContains(t, tr.Output(), "=>")
}
