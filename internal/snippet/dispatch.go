package snippet

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/replsnip/internal/editctx"
	"github.com/leapstack-labs/replsnip/internal/repl"
)

// Evaluator sends code to a REPL target.
type Evaluator interface {
	EvaluateInOutputWindow(ctx context.Context, code, target, ns string, opts repl.Options) (*repl.Result, error)
}

// Output is the surface told when an evaluation has finished.
type Output interface {
	AppendPrompt()
}

// Invocation is one request to run a snippet or literal code.
type Invocation struct {
	// CodeOrKey is a snippet key or literal code; nil asks the user to pick.
	CodeOrKey *string
	Scopes    Scopes
	Context   editctx.Provider
	Session   repl.SessionState
}

// Runner runs invocations. Picker, Notifier, Output and Logger are optional.
type Runner struct {
	Picker    Picker
	Notifier  Notifier
	Evaluator Evaluator
	Output    Output
	Logger    *slog.Logger
}

// Run resolves and evaluates one invocation.
//
// The editing context is captured once up front, so edits made while the user
// is picking do not change what is evaluated. A nil result with a nil error
// means nothing was run. Configuration errors are shown through the Notifier
// and returned; backend errors are returned unchanged.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*repl.Result, error) {
	logger := r.logger()

	var snap editctx.Snapshot
	if inv.Context != nil {
		snap = editctx.Capture(inv.Context)
	}
	defaults := Defaults{
		NS:   snap.NS,
		Repl: inv.Session.ReplType(snap.IsTargetLanguage()),
	}

	reg, err := Build(inv.Scopes, defaults)
	if err != nil {
		if r.Notifier != nil {
			r.Notifier.Error(err.Error())
		}
		return nil, err
	}

	sel := Select(ctx, inv.CodeOrKey, reg, r.Picker, r.Notifier, logger)
	switch sel.Outcome {
	case OutcomeSnippet:
		logger.Debug("running snippet", slog.String("label", sel.Entry.Label))
		rec := snap.Record(sel.Entry.NS, sel.Entry.Repl)
		def := Definition{Snippet: sel.Entry.Definition.Snippet}
		return r.EvaluateSnippet(ctx, def, rec, DeriveOptions(sel.Entry, inv.Session.OutputWindowActive))
	case OutcomeCode:
		logger.Debug("running literal code")
		rec := snap.Record(defaults.NS, defaults.Repl)
		return r.EvaluateSnippet(ctx, Definition{Snippet: sel.Code}, rec, DeriveOptions(nil, inv.Session.OutputWindowActive))
	default:
		return nil, nil
	}
}

// EvaluateSnippet interpolates def's template against rec and evaluates it.
// The definition's own ns and repl take precedence over the record's.
// A prompt is appended to the output once the evaluation returns.
func (r *Runner) EvaluateSnippet(ctx context.Context, def Definition, rec editctx.Record, opts repl.Options) (*repl.Result, error) {
	if def.NS != "" {
		ns := def.NS
		rec.NS = &ns
	}
	if def.Repl != "" {
		rec.Repl = def.Repl
	}
	code := Interpolate(def.Snippet, rec)

	var ns string
	if rec.NS != nil {
		ns = *rec.NS
	}
	res, err := r.Evaluator.EvaluateInOutputWindow(ctx, code, rec.Repl, ns, opts)
	if r.Output != nil {
		r.Output.AppendPrompt()
	}
	return res, err
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}
