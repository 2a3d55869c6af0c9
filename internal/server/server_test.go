package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	res   *repl.Result
	err   error
}

func (f *fakeBackend) Eval(_ context.Context, code, ns string) (*repl.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ns+"|"+code)
	return f.res, f.err
}

func (f *fakeBackend) Close() error { return nil }

func newTestServer(t *testing.T, scopes snippet.Scopes, backend *fakeBackend) *httptest.Server {
	t.Helper()
	targets := repl.NewTargets(map[string]repl.TargetConfig{"clj": {Type: "nrepl"}}, nil)
	targets.Set("clj", backend)

	s := NewServer(Config{
		Targets: targets,
		Scopes:  scopes,
		Logger:  testutil.NewTestLogger(t),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postRun(t *testing.T, ts *httptest.Server, body string) (int, RunResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

var resetScopes = snippet.Scopes{
	Workspace: []snippet.Definition{
		{Name: "Reset", Key: "r", Snippet: "(reset! $ns/state nil)", NS: "my.app"},
	},
}

func TestRun_Key(t *testing.T) {
	backend := &fakeBackend{res: &repl.Result{Value: "nil", NS: "my.app"}}
	ts := newTestServer(t, resetScopes, backend)

	status, out := postRun(t, ts, `{"codeOrKey": "r", "context": {"file": "src/my/app.clj", "ns": "other.ns"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Evaluated)
	assert.Equal(t, []string{"(reset! my.app/state nil)"}, out.Echoed)
	require.NotNil(t, out.Result)
	assert.Equal(t, "nil", out.Result.Value)
	assert.Equal(t, []string{"my.app|(reset! my.app/state nil)"}, backend.calls)
}

func TestRun_LiteralCodeUsesContext(t *testing.T) {
	backend := &fakeBackend{res: &repl.Result{Value: "3"}}
	ts := newTestServer(t, snippet.Scopes{}, backend)

	status, out := postRun(t, ts, `{"codeOrKey": "(inc $line)", "context": {"file": "a.clj", "position": {"line": 2, "column": 0}, "ns": "a.core"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Evaluated)
	assert.Equal(t, []string{"a.core|(inc 2)"}, backend.calls)
}

func TestRun_NoKeyHasNoMenu(t *testing.T) {
	backend := &fakeBackend{}
	ts := newTestServer(t, snippet.Scopes{}, backend)

	status, out := postRun(t, ts, `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, out.Evaluated)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "info", out.Messages[0].Level)
	assert.Equal(t, snippet.NoSnippetsMessage, out.Messages[0].Text)
	assert.Empty(t, backend.calls)
}

func TestRun_RequestSnippetsOverrideServer(t *testing.T) {
	backend := &fakeBackend{res: &repl.Result{Value: ":ok"}}
	ts := newTestServer(t, resetScopes, backend)

	status, out := postRun(t, ts, `{"codeOrKey": "x", "snippets": {"global": [{"name": "X", "key": "x", "snippet": "(x)"}]}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"(x)"}, out.Echoed)
}

func TestRun_RequestLegacySnippets(t *testing.T) {
	backend := &fakeBackend{res: &repl.Result{Value: ":ok"}}
	ts := newTestServer(t, resetScopes, backend)

	status, out := postRun(t, ts, `{"codeOrKey": "o", "snippets": {"legacy": [{"name": "Old", "key": "o", "snippet": "(old)"}]}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Evaluated)
	assert.Equal(t, []string{"(old)"}, out.Echoed)

	// Scoped snippets win over the legacy list.
	status, out = postRun(t, ts, `{"codeOrKey": "o", "snippets": {"workspace": [{"name": "New", "key": "o", "snippet": "(new)"}], "legacy": [{"name": "Old", "key": "o", "snippet": "(old)"}]}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"(new)"}, out.Echoed)
}

func TestRun_ConfigurationError(t *testing.T) {
	backend := &fakeBackend{}
	ts := newTestServer(t, snippet.Scopes{Global: []snippet.Definition{{Name: "broken"}}}, backend)

	status, out := postRun(t, ts, `{"codeOrKey": "(+ 1 2)"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.False(t, out.Evaluated)
	assert.Contains(t, out.Error, "Values missing for")
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "error", out.Messages[0].Level)
	assert.Empty(t, backend.calls)
}

func TestRun_BackendError(t *testing.T) {
	backend := &fakeBackend{res: &repl.Result{Err: "boom"}, err: errors.New("eval failed")}
	ts := newTestServer(t, snippet.Scopes{}, backend)

	status, out := postRun(t, ts, `{"codeOrKey": "(boom)"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "eval failed", out.Error)
	require.NotNil(t, out.Result)
	assert.Equal(t, "boom", out.Result.Err)
}

func TestRun_UnknownTarget(t *testing.T) {
	ts := newTestServer(t, snippet.Scopes{}, &fakeBackend{})

	status, out := postRun(t, ts, `{"codeOrKey": "(+ 1 2)", "context": {"file": "a.clj"}, "session": {"type": "nope"}}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, out.Error, "nope")
}

func TestRun_BadRequest(t *testing.T) {
	ts := newTestServer(t, snippet.Scopes{}, &fakeBackend{})

	status, out := postRun(t, ts, `{"codeOrKey": 12}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out.Error, "invalid request")
}

func TestListSnippets(t *testing.T) {
	ts := newTestServer(t, resetScopes, &fakeBackend{})

	resp, err := http.Get(ts.URL + "/api/snippets")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []SnippetInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "r: Reset (clj)", infos[0].Label)
	assert.Equal(t, "my.app", infos[0].NS)
}

func TestListTokensAndHealth(t *testing.T) {
	ts := newTestServer(t, snippet.Scopes{}, &fakeBackend{})

	resp, err := http.Get(ts.URL + "/api/tokens")
	require.NoError(t, err)
	var tokens []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	_ = resp.Body.Close()
	assert.Len(t, tokens, len(snippet.Tokens()))

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	s := NewServer(Config{Targets: repl.NewTargets(nil, nil)})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSetScopes(t *testing.T) {
	s := NewServer(Config{Targets: repl.NewTargets(nil, nil)})
	assert.Empty(t, snippet.Merge(s.Scopes()))

	s.SetScopes(resetScopes)
	assert.Len(t, snippet.Merge(s.Scopes()), 1)
}
