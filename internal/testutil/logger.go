// Package testutil provides loggers for tests.
package testutil

import (
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a debug logger that writes through t.Log, so lines
// show up only for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	logger, _ := NewCaptureLogger(t)
	return logger
}

// Capture keeps the lines a capture logger wrote.
type Capture struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns the captured lines in write order.
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Contains reports whether any captured line contains substr.
func (c *Capture) Contains(substr string) bool {
	for _, line := range c.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// NewCaptureLogger is NewTestLogger that also records every line, for tests
// that assert a failure was logged rather than returned.
func NewCaptureLogger(t testing.TB) (*slog.Logger, *Capture) {
	t.Helper()
	c := &Capture{}
	handler := slog.NewTextHandler(&tbWriter{t: t, capture: c}, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: dropTime,
	})
	return slog.New(handler), c
}

// dropTime keeps captured lines stable.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type tbWriter struct {
	t       testing.TB
	capture *Capture
}

func (w *tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	line := strings.TrimRight(string(p), "\n")

	w.capture.mu.Lock()
	w.capture.lines = append(w.capture.lines, line)
	w.capture.mu.Unlock()

	w.t.Log(line)
	return len(p), nil
}
