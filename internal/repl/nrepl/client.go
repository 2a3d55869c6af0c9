// Package nrepl is a Backend speaking the nREPL protocol over TCP.
//
// Messages are bencoded dictionaries. Every request carries a fresh id and
// the client's session; responses are collected until one reports status "done".
package nrepl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackpal/bencode-go"
	"github.com/leapstack-labs/replsnip/internal/repl"
)

// DefaultPortFile is the file nREPL servers write their port to.
const DefaultPortFile = ".nrepl-port"

// DefaultDialTimeout applies when the target sets no timeout.
const DefaultDialTimeout = 5 * time.Second

func init() {
	repl.Register("nrepl", func(ctx context.Context, cfg repl.TargetConfig, logger *slog.Logger) (repl.Backend, error) {
		return Dial(ctx, cfg, logger)
	})
}

// EvalError is returned when the evaluated code threw.
type EvalError struct {
	Ex  string
	Err string
}

func (e *EvalError) Error() string {
	msg := "evaluation failed"
	if e.Ex != "" {
		msg += ": " + e.Ex
	}
	if line, _, _ := strings.Cut(strings.TrimSpace(e.Err), "\n"); line != "" {
		msg += ": " + line
	}
	return msg
}

// Client is one nREPL session.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	logger  *slog.Logger
	session string

	mu sync.Mutex
}

var _ repl.Backend = (*Client)(nil)

// Dial connects to the target's address, or to the port in its port file.
func Dial(ctx context.Context, cfg repl.TargetConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Address
	if addr == "" {
		var err error
		addr, err = ReadPortFile(cfg.PortFile)
		if err != nil {
			return nil, err
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nREPL at %s: %w", addr, err)
	}
	logger.Debug("connected to nREPL", slog.String("addr", addr))

	c, err := NewClient(ctx, conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// ReadPortFile returns "localhost:<port>" from an nREPL port file.
func ReadPortFile(path string) (string, error) {
	if path == "" {
		path = DefaultPortFile
	}
	content, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return "", fmt.Errorf("failed to read nREPL port file: %w", err)
	}
	port := strings.TrimSpace(string(content))
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid nREPL port %q in %s", port, path)
	}
	return net.JoinHostPort("localhost", port), nil
}

// NewClient starts a session over an open connection.
func NewClient(ctx context.Context, conn net.Conn, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{conn: conn, r: bufio.NewReader(conn), logger: logger}

	err := c.roundTrip(ctx, map[string]any{"op": "clone"}, func(resp map[string]any) {
		if s, ok := resp["new-session"].(string); ok {
			c.session = s
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone nREPL session: %w", err)
	}
	if c.session == "" {
		return nil, fmt.Errorf("nREPL server did not return a session")
	}
	return c, nil
}

// Session returns the session id.
func (c *Client) Session() string { return c.session }

// Eval evaluates code in ns ("" for the session's current namespace).
// Output written while evaluating is returned with the result, also on error.
func (c *Client) Eval(ctx context.Context, code, ns string) (*repl.Result, error) {
	msg := map[string]any{"op": "eval", "code": code}
	if ns != "" {
		msg["ns"] = ns
	}

	var out, errOut strings.Builder
	var values []string
	res := &repl.Result{}
	failed := false
	err := c.roundTrip(ctx, msg, func(resp map[string]any) {
		if s, ok := resp["out"].(string); ok {
			out.WriteString(s)
		}
		if s, ok := resp["err"].(string); ok {
			errOut.WriteString(s)
		}
		if s, ok := resp["value"].(string); ok {
			values = append(values, s)
		}
		if s, ok := resp["ns"].(string); ok {
			res.NS = s
		}
		if s, ok := resp["ex"].(string); ok {
			res.Ex = s
		}
		if hasStatus(resp, "eval-error") {
			failed = true
		}
	})
	res.Out = out.String()
	res.Err = errOut.String()
	res.Value = strings.Join(values, "\n")
	if err != nil {
		return nil, err
	}
	if failed {
		return res, &EvalError{Ex: res.Ex, Err: res.Err}
	}
	return res, nil
}

// Close closes the session and the connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.roundTrip(ctx, map[string]any{"op": "close"}, nil); err != nil {
		c.logger.Debug("failed to close nREPL session", slog.String("error", err.Error()))
	}
	return c.conn.Close()
}

// roundTrip sends msg and feeds each response for it to handle until "done".
func (c *Client) roundTrip(ctx context.Context, msg map[string]any, handle func(map[string]any)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	msg["id"] = id
	if c.session != "" {
		msg["session"] = c.session
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Unix(1, 0)) })
	defer func() {
		stop()
		_ = c.conn.SetDeadline(time.Time{})
	}()

	if err := bencode.Marshal(c.conn, msg); err != nil {
		return c.ioErr(ctx, "send", err)
	}
	for {
		v, err := bencode.Decode(c.r)
		if err != nil {
			return c.ioErr(ctx, "receive", err)
		}
		resp, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("unexpected nREPL message of type %T", v)
		}
		if resp["id"] != id {
			c.logger.Debug("skipping nREPL message for another request", slog.Any("id", resp["id"]))
			continue
		}
		if handle != nil {
			handle(resp)
		}
		if hasStatus(resp, "done") {
			return nil
		}
	}
}

func (c *Client) ioErr(ctx context.Context, op string, err error) error {
	// Deadlines are only ever set from ctx, so a timeout means ctx is finishing.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() && ctx.Done() != nil {
		<-ctx.Done()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("nREPL %s failed: %w", op, err)
}

func hasStatus(resp map[string]any, status string) bool {
	list, ok := resp["status"].([]any)
	if !ok {
		return false
	}
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
