package nrepl

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackpal/bencode-go"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers nREPL requests on one end of a net.Pipe.
type fakeServer struct {
	mu       sync.Mutex
	requests []map[string]any
	reply    func(msg map[string]any) []map[string]any
}

func (s *fakeServer) serve(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		v, err := bencode.Decode(r)
		if err != nil {
			return
		}
		msg, ok := v.(map[string]any)
		if !ok {
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, msg)
		s.mu.Unlock()

		for _, resp := range s.reply(msg) {
			resp["id"] = msg["id"]
			if err := bencode.Marshal(conn, resp); err != nil {
				return
			}
		}
	}
}

func (s *fakeServer) lastRequest(op string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i]["op"] == op {
			return s.requests[i]
		}
	}
	return nil
}

func done(extra map[string]any, statuses ...any) map[string]any {
	if extra == nil {
		extra = map[string]any{}
	}
	extra["status"] = append([]any{"done"}, statuses...)
	return extra
}

func standardReply(msg map[string]any) []map[string]any {
	switch msg["op"] {
	case "clone":
		return []map[string]any{done(map[string]any{"new-session": "sess-1"})}
	case "eval":
		if msg["code"] == "(/ 1 0)" {
			return []map[string]any{
				{"err": "Execution error (ArithmeticException) Divide by zero\n"},
				{"ex": "class java.lang.ArithmeticException", "status": []any{"eval-error"}},
				done(nil),
			}
		}
		value := map[string]any{"value": "3"}
		if ns, ok := msg["ns"]; ok {
			value["ns"] = ns
		}
		return []map[string]any{{"out": "hello\n"}, value, done(nil)}
	default:
		return []map[string]any{done(nil)}
	}
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	srv := &fakeServer{reply: standardReply}
	go srv.serve(serverConn)
	t.Cleanup(func() { _ = serverConn.Close() })

	c, err := NewClient(context.Background(), clientConn, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return c, srv
}

func TestClient_CloneAndEval(t *testing.T) {
	c, srv := newTestClient(t)
	assert.Equal(t, "sess-1", c.Session())

	res, err := c.Eval(context.Background(), "(+ 1 2)", "my.app")
	require.NoError(t, err)
	assert.Equal(t, "3", res.Value)
	assert.Equal(t, "hello\n", res.Out)
	assert.Equal(t, "my.app", res.NS)

	req := srv.lastRequest("eval")
	require.NotNil(t, req)
	assert.Equal(t, "sess-1", req["session"])
	assert.Equal(t, "my.app", req["ns"])
	assert.NotEmpty(t, req["id"])
}

func TestClient_EvalWithoutNamespace(t *testing.T) {
	c, srv := newTestClient(t)

	_, err := c.Eval(context.Background(), "(+ 1 2)", "")
	require.NoError(t, err)
	_, hasNS := srv.lastRequest("eval")["ns"]
	assert.False(t, hasNS)
}

func TestClient_EvalError(t *testing.T) {
	c, _ := newTestClient(t)

	res, err := c.Eval(context.Background(), "(/ 1 0)", "user")
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "class java.lang.ArithmeticException", evalErr.Ex)
	assert.Contains(t, err.Error(), "Divide by zero")
	require.NotNil(t, res)
	assert.Contains(t, res.Err, "ArithmeticException")
}

func TestClient_SkipsMessagesForOtherRequests(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	srv := &fakeServer{reply: func(msg map[string]any) []map[string]any {
		if msg["op"] == "clone" {
			return []map[string]any{done(map[string]any{"new-session": "s"})}
		}
		return nil
	}}
	go func() {
		r := bufio.NewReader(serverConn)
		for {
			v, err := bencode.Decode(r)
			if err != nil {
				return
			}
			msg := v.(map[string]any)
			_ = bencode.Marshal(serverConn, map[string]any{"id": "stale", "value": "old"})
			for _, resp := range srv.reply(msg) {
				resp["id"] = msg["id"]
				_ = bencode.Marshal(serverConn, resp)
			}
			if msg["op"] == "eval" {
				_ = bencode.Marshal(serverConn, done(map[string]any{"id": msg["id"], "value": "new"}))
			}
		}
	}()
	t.Cleanup(func() { _ = serverConn.Close() })

	c, err := NewClient(context.Background(), clientConn, nil)
	require.NoError(t, err)

	res, err := c.Eval(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, "new", res.Value)
}

func TestClient_ContextCancel(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	go (&fakeServer{reply: func(msg map[string]any) []map[string]any {
		if msg["op"] == "clone" {
			return []map[string]any{done(map[string]any{"new-session": "s"})}
		}
		return nil // never answers evals
	}}).serve(serverConn)
	t.Cleanup(func() { _ = serverConn.Close() })

	c, err := NewClient(context.Background(), clientConn, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Eval(ctx, "(Thread/sleep 100000)", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Close(t *testing.T) {
	c, srv := newTestClient(t)

	require.NoError(t, c.Close())
	req := srv.lastRequest("close")
	require.NotNil(t, req)
	assert.Equal(t, "sess-1", req["session"])
}

func TestReadPortFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".nrepl-port")
	require.NoError(t, os.WriteFile(path, []byte("51234\n"), 0o600))

	addr, err := ReadPortFile(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:51234", addr)

	require.NoError(t, os.WriteFile(path, []byte("not-a-port"), 0o600))
	_, err = ReadPortFile(path)
	assert.Error(t, err)

	_, err = ReadPortFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &fakeServer{reply: standardReply}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.serve(conn)
	}()

	b, err := repl.Open(context.Background(), repl.TargetConfig{Type: "nrepl", Address: ln.Addr().String()}, nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	res, err := b.Eval(context.Background(), "(+ 1 2)", "user")
	require.NoError(t, err)
	assert.Equal(t, "3", res.Value)
}
