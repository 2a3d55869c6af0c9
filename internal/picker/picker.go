// Package picker is the terminal implementation of the snippet menu.
package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when there is no terminal to pick on.
var ErrNotInteractive = errors.New("interactive pick requires a terminal")

// Memory remembers the last choice made for a save-as key.
type Memory interface {
	LastPick(ctx context.Context, saveAs string) (string, error)
	SavePick(ctx context.Context, saveAs, label string) error
}

// Picker runs a bubbletea list on the terminal.
type Picker struct {
	In     *os.File
	Out    io.Writer
	Memory Memory
	Logger *slog.Logger

	// run executes the program; replaced in tests.
	run func(ctx context.Context, m model) (model, error)
}

var _ snippet.Picker = (*Picker)(nil)

// New creates a Picker on stdin/stderr. memory may be nil.
func New(memory Memory, logger *slog.Logger) *Picker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Picker{In: os.Stdin, Out: os.Stderr, Memory: memory, Logger: logger}
}

// Pick shows req.Items and returns the chosen label, or "" when cancelled.
func (p *Picker) Pick(ctx context.Context, req snippet.PickRequest) (string, error) {
	run := p.run
	if run == nil {
		if p.In == nil || !term.IsTerminal(int(p.In.Fd())) {
			return "", ErrNotInteractive
		}
		run = p.runProgram
	}

	var preselect string
	if p.Memory != nil && req.SaveAs != "" {
		last, err := p.Memory.LastPick(ctx, req.SaveAs)
		if err != nil {
			p.Logger.Debug("failed to load last pick", slog.String("error", err.Error()))
		}
		preselect = last
	}

	final, err := run(ctx, newModel(req.Items, req.Placeholder, preselect))
	if err != nil {
		return "", err
	}
	if final.cancelled || final.chosen == "" {
		return "", nil
	}

	if p.Memory != nil && req.SaveAs != "" {
		if err := p.Memory.SavePick(ctx, req.SaveAs, final.chosen); err != nil {
			p.Logger.Debug("failed to save pick", slog.String("error", err.Error()))
		}
	}
	return final.chosen, nil
}

func (p *Picker) runProgram(ctx context.Context, m model) (model, error) {
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(p.In), tea.WithOutput(out))
	final, err := prog.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return model{}, ctx.Err()
		}
		return model{}, fmt.Errorf("picker failed: %w", err)
	}
	fm, ok := final.(model)
	if !ok {
		return model{}, fmt.Errorf("picker returned unexpected model %T", final)
	}
	return fm, nil
}
