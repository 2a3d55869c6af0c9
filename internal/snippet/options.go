package snippet

import "github.com/leapstack-labs/replsnip/internal/repl"

// DeriveOptions computes evaluation options for a resolved entry.
//
// Literal code (nil entry) gets empty options. A snippet keeps its own
// output-window setting, and is kept out of history when the output window is
// active but the snippet's code would not be shown there.
func DeriveOptions(entry *Entry, outputWindowActive bool) repl.Options {
	if entry == nil {
		return repl.Options{}
	}
	opts := repl.Options{SendCodeToOutputWindow: entry.Definition.SendCodeToOutputWindow}
	sendsCode := opts.SendCodeToOutputWindow != nil && *opts.SendCodeToOutputWindow
	if outputWindowActive && !sendsCode {
		noHistory := false
		opts.AddToHistory = &noHistory
	}
	return opts
}
