package commands

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/cli/output"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/testutil"
	"github.com/stretchr/testify/assert"
)

type recordingBackend struct {
	mu    sync.Mutex
	codes []string
}

func (b *recordingBackend) Eval(_ context.Context, code, _ string) (*repl.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes = append(b.codes, code)
	return &repl.Result{Value: "nil"}, nil
}

func (b *recordingBackend) Close() error { return nil }

type recordingHistory struct {
	codes []string
}

func (h *recordingHistory) Add(code string) error {
	h.codes = append(h.codes, code)
	return nil
}

// newTestSession builds a REPL window session on target "fake" backed by backend.
func newTestSession(t *testing.T, cfg *config.Config, backend repl.Backend) (*replSession, *recordingHistory, *bytes.Buffer) {
	t.Helper()
	cfg.StatePath = ":memory:"

	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmdCtx := &CommandContext{
		Cfg:      cfg,
		Logger:   testutil.NewTestLogger(t),
		Renderer: output.NewRendererWithTTY(out, errOut, false, output.ModeText),
	}

	history := &recordingHistory{}
	pipeline, cleanup := cmdCtx.NewPipeline(history)
	t.Cleanup(cleanup)
	pipeline.Targets.Set("fake", backend)

	return &replSession{
		pipeline: pipeline,
		out:      out,
		errOut:   errOut,
		cfg:      cfg,
		target:   "fake",
	}, history, out
}

func TestReplSession_RunSkipsHistoryByDefault(t *testing.T) {
	cfg := &config.Config{Snippets: config.SnippetsConfig{
		Workspace: []snippet.Definition{{Name: "Reset", Key: "r", Snippet: "(reset)"}},
	}}
	backend := &recordingBackend{}
	s, history, _ := newTestSession(t, cfg, backend)

	quit := s.handleDotCommand(t.Context(), ".run r")
	assert.False(t, quit)

	assert.Equal(t, []string{"(reset)"}, backend.codes)
	assert.Empty(t, history.codes)
}

func TestReplSession_RunAddsHistoryWhenEchoing(t *testing.T) {
	echo := true
	cfg := &config.Config{Snippets: config.SnippetsConfig{
		Workspace: []snippet.Definition{{Name: "Reset", Key: "r", Snippet: "(reset)", SendCodeToOutputWindow: &echo}},
	}}
	backend := &recordingBackend{}
	s, history, out := newTestSession(t, cfg, backend)

	s.handleDotCommand(t.Context(), ".run r")

	assert.Equal(t, []string{"(reset)"}, backend.codes)
	assert.Equal(t, []string{"(reset)"}, history.codes)
	assert.Contains(t, out.String(), "(reset)")
}

func TestReplSession_TargetSwitchesLabels(t *testing.T) {
	cfg := &config.Config{Snippets: config.SnippetsConfig{
		Global: []snippet.Definition{{Name: "Reset", Key: "r", Snippet: "(reset)"}},
	}}
	s, _, out := newTestSession(t, cfg, &recordingBackend{})

	s.handleDotCommand(t.Context(), ".snippets")
	assert.Contains(t, out.String(), "r: Reset (fake)")

	out.Reset()
	s.handleDotCommand(t.Context(), ".target cljs")
	assert.Equal(t, "cljs", s.currentTarget())

	s.handleDotCommand(t.Context(), ".snippets")
	assert.Contains(t, out.String(), "r: Reset (cljs)")
	assert.NotContains(t, out.String(), "(fake)")
}

func TestReplSession_SnippetsEmpty(t *testing.T) {
	s, _, out := newTestSession(t, &config.Config{}, &recordingBackend{})

	s.handleDotCommand(t.Context(), ".snippets")
	assert.Contains(t, out.String(), snippet.NoSnippetsMessage)
}

func TestReplSession_Quit(t *testing.T) {
	s, _, _ := newTestSession(t, &config.Config{}, &recordingBackend{})

	assert.True(t, s.handleDotCommand(t.Context(), ".quit"))
	assert.True(t, s.handleDotCommand(t.Context(), ".exit"))
	assert.False(t, s.handleDotCommand(t.Context(), ".help"))
}
