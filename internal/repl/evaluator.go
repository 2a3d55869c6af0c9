package repl

import (
	"context"
	"log/slog"
	"time"
)

// Window is the output window evaluations are echoed to.
type Window interface {
	AppendCode(code string)
	AppendResult(res *Result)
}

// History receives code entered into the REPL history.
type History interface {
	Add(code string) error
}

// Evaluation is one finished evaluation, as written to a Journal.
type Evaluation struct {
	Target   string
	NS       string
	Code     string
	Result   *Result
	Err      error
	Duration time.Duration
}

// Journal records finished evaluations.
type Journal interface {
	RecordEvaluation(ctx context.Context, e Evaluation) error
}

// Evaluator sends code to a REPL target the way the output window does.
// Window, History and Journal are optional.
type Evaluator struct {
	Targets *Targets
	Window  Window
	History History
	Journal Journal
	Logger  *slog.Logger
}

// EvaluateInOutputWindow evaluates code on target in namespace ns.
//
// The code is echoed to the window unless opts.SendCodeToOutputWindow is
// false, and added to history unless opts.AddToHistory is false. Backend
// errors are returned unchanged; whatever output came with them is still shown.
func (e *Evaluator) EvaluateInOutputWindow(ctx context.Context, code, target, ns string, opts Options) (*Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if e.Window != nil && enabled(opts.SendCodeToOutputWindow) {
		e.Window.AppendCode(code)
	}
	if e.History != nil && enabled(opts.AddToHistory) {
		if err := e.History.Add(code); err != nil {
			logger.Warn("failed to add to history", slog.String("error", err.Error()))
		}
	}

	backend, err := e.Targets.Get(ctx, target)
	if err != nil {
		return nil, err
	}

	logger.Debug("evaluating", slog.String("target", target), slog.String("ns", ns))
	start := time.Now()
	res, err := backend.Eval(ctx, code, ns)
	elapsed := time.Since(start)

	if e.Journal != nil {
		entry := Evaluation{Target: target, NS: ns, Code: code, Result: res, Err: err, Duration: elapsed}
		if jerr := e.Journal.RecordEvaluation(ctx, entry); jerr != nil {
			logger.Warn("failed to record evaluation", slog.String("error", jerr.Error()))
		}
	}
	if e.Window != nil && res != nil {
		e.Window.AppendResult(res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// enabled treats an unset flag as true.
func enabled(flag *bool) bool {
	return flag == nil || *flag
}
