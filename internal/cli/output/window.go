package output

import (
	"fmt"
	"strings"
	"sync"

	"github.com/leapstack-labs/replsnip/internal/repl"
)

// Window is the REPL output window: evaluated code, results and the prompt
// are appended to it in order. It is also the channel for user-facing
// notifications.
type Window struct {
	r *Renderer

	mu sync.Mutex
	ns string

	// OnPrompt replaces printing the prompt, for surfaces that draw their own.
	OnPrompt func(prompt string)
}

var _ repl.Window = (*Window)(nil)

// NewWindow creates a window over r. In JSON mode only notifications are written.
func NewWindow(r *Renderer) *Window {
	return &Window{r: r, ns: "user"}
}

func (w *Window) quiet() bool {
	return w.r.EffectiveMode() == ModeJSON
}

// Append writes raw text.
func (w *Window) Append(text string) {
	if w.quiet() {
		return
	}
	w.r.Println(strings.TrimRight(text, "\n"))
}

// AppendCode echoes code about to be evaluated.
func (w *Window) AppendCode(code string) {
	if w.quiet() {
		return
	}
	if w.r.EffectiveMode() == ModeMarkdown {
		w.r.Println("```clojure")
		w.r.Println(code)
		w.r.Println("```")
		return
	}
	w.r.Println(w.r.Styles().Code.Render(code))
}

// AppendResult writes an evaluation's output, errors and value.
func (w *Window) AppendResult(res *repl.Result) {
	if res == nil {
		return
	}
	w.mu.Lock()
	if res.NS != "" {
		w.ns = res.NS
	}
	w.mu.Unlock()

	if w.quiet() {
		return
	}
	styles := w.r.Styles()
	if res.Out != "" {
		w.r.Println(strings.TrimRight(res.Out, "\n"))
	}
	if res.Err != "" {
		w.r.Println(styles.Error.Render(strings.TrimRight(res.Err, "\n")))
	}
	if res.Ex != "" {
		w.r.Println(styles.Error.Render("; " + res.Ex))
	}
	if res.Value != "" {
		w.r.Println(res.Value)
	}
}

// NS returns the namespace of the last result, "user" before any.
func (w *Window) NS() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ns
}

// Prompt returns the current prompt text.
func (w *Window) Prompt() string {
	return fmt.Sprintf("%s=> ", w.NS())
}

// AppendPrompt shows a fresh prompt.
func (w *Window) AppendPrompt() {
	if w.OnPrompt != nil {
		w.OnPrompt(w.Prompt())
		return
	}
	if w.quiet() {
		return
	}
	w.r.Println(w.r.Styles().Prompt.Render(w.Prompt()))
}

// Info shows an informational message.
func (w *Window) Info(msg string) {
	_, _ = fmt.Fprintln(w.r.ErrWriter(), w.r.Styles().Info.Render(msg))
}

// Error shows an error message.
func (w *Window) Error(msg string) {
	w.r.Error(msg)
}
