package snippet

import (
	"context"
	"log/slog"
)

// Interactive pick parameters.
const (
	PickPlaceholder = "Choose a command to run at the REPL"
	PickSaveAs      = "runCustomREPLCommand"
)

// NoSnippetsMessage guides the user when nothing is configured.
const NoSnippetsMessage = "; No snippets configured. Configure snippets in `" + SettingName + "`."

// PickRequest asks the user to choose one of Items.
type PickRequest struct {
	Items       []string
	Placeholder string
	// SaveAs names the pick so the picker can remember the last choice.
	SaveAs string
}

// Picker presents an interactive choice. An empty result means the pick was cancelled.
type Picker interface {
	Pick(ctx context.Context, req PickRequest) (string, error)
}

// Notifier shows user-facing messages.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Outcome is the kind of a Selection.
type Outcome int

// Selection outcomes.
const (
	OutcomeNone Outcome = iota
	OutcomeSnippet
	OutcomeCode
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSnippet:
		return "snippet"
	case OutcomeCode:
		return "code"
	default:
		return "none"
	}
}

// Selection is what Select resolved to: an entry, literal code, or nothing.
type Selection struct {
	Outcome Outcome
	Entry   *Entry
	Code    string
}

// Select resolves codeOrKey against reg.
//
// With no codeOrKey the user picks from the menu; an empty set shows the
// configuration guidance instead. A codeOrKey that is not a known key is
// literal code. Picker failures are logged and count as a cancelled pick.
func Select(ctx context.Context, codeOrKey *string, reg *Registry, picker Picker, notifier Notifier, logger *slog.Logger) Selection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if codeOrKey == nil {
		if reg.Len() == 0 {
			if notifier != nil {
				notifier.Info(NoSnippetsMessage)
			}
			return Selection{Outcome: OutcomeNone}
		}
		label := pick(ctx, reg, picker, logger)
		if label == "" {
			return Selection{Outcome: OutcomeNone}
		}
		if entry, ok := reg.Entry(label); ok {
			return Selection{Outcome: OutcomeSnippet, Entry: entry}
		}
		logger.Warn("picked label is not in the menu", slog.String("label", label))
		return Selection{Outcome: OutcomeNone}
	}

	if entry, ok := reg.Lookup(*codeOrKey); ok {
		return Selection{Outcome: OutcomeSnippet, Entry: entry}
	}
	return Selection{Outcome: OutcomeCode, Code: *codeOrKey}
}

func pick(ctx context.Context, reg *Registry, picker Picker, logger *slog.Logger) string {
	if picker == nil {
		logger.Warn("no interactive picker available")
		return ""
	}
	label, err := picker.Pick(ctx, PickRequest{
		Items:       reg.Labels(),
		Placeholder: PickPlaceholder,
		SaveAs:      PickSaveAs,
	})
	if err != nil {
		logger.Error("snippet selection failed", slog.String("error", err.Error()))
		return ""
	}
	return label
}
