package picker

import (
	"context"
	"errors"
	"os"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/leapstack-labs/replsnip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func typed(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func update(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(model)
		require.True(t, ok)
	}
	return m
}

var items = []string{"user: Reset state", "user: Start server", "clj: Run tests"}

func TestModel_Navigation(t *testing.T) {
	m := newModel(items, "Choose", "")
	assert.Equal(t, 0, m.cursor)

	m = update(t, m, key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown))
	assert.Equal(t, 2, m.cursor, "cursor stops at the last item")

	m = update(t, m, key(tea.KeyUp), key(tea.KeyEnter))
	assert.Equal(t, "user: Start server", m.chosen)
	assert.False(t, m.cancelled)
}

func TestModel_Cancel(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := update(t, newModel(items, "", ""), key(k))
		assert.True(t, m.cancelled)
		assert.Empty(t, m.chosen)
		assert.Empty(t, m.View())
	}
}

func TestModel_Filter(t *testing.T) {
	m := update(t, newModel(items, "", ""), typed("user serv"))
	require.Equal(t, []int{1}, m.filtered)

	m = update(t, m, key(tea.KeyEnter))
	assert.Equal(t, "user: Start server", m.chosen)
}

func TestModel_FilterWithoutMatches(t *testing.T) {
	m := update(t, newModel(items, "", ""), typed("nothing"))
	assert.Empty(t, m.filtered)
	assert.Contains(t, m.View(), "no matches")

	m = update(t, m, key(tea.KeyEnter))
	assert.Empty(t, m.chosen, "enter does nothing without matches")
}

func TestModel_Preselect(t *testing.T) {
	m := newModel(items, "", "clj: Run tests")
	assert.Equal(t, 2, m.cursor)
	assert.Contains(t, m.View(), "› clj: Run tests")
}

func TestModel_Scrolls(t *testing.T) {
	many := make([]string, 25)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	m := newModel(many, "", "y")
	assert.Equal(t, 24, m.cursor)
	assert.Equal(t, 15, m.offset)

	m = update(t, m, typed("a"))
	assert.Equal(t, 0, m.offset)
}

type fakeMemory struct {
	picks map[string]string
	err   error
}

func (f *fakeMemory) LastPick(_ context.Context, saveAs string) (string, error) {
	return f.picks[saveAs], f.err
}

func (f *fakeMemory) SavePick(_ context.Context, saveAs, label string) error {
	if f.err != nil {
		return f.err
	}
	f.picks[saveAs] = label
	return nil
}

func TestPicker_RemembersPick(t *testing.T) {
	mem := &fakeMemory{picks: map[string]string{snippet.PickSaveAs: "clj: Run tests"}}
	p := New(mem, testutil.NewTestLogger(t))

	var seenCursor int
	p.run = func(_ context.Context, m model) (model, error) {
		seenCursor = m.cursor
		return update(t, m, key(tea.KeyUp), key(tea.KeyEnter)), nil
	}

	got, err := p.Pick(context.Background(), snippet.PickRequest{Items: items, SaveAs: snippet.PickSaveAs})
	require.NoError(t, err)
	assert.Equal(t, 2, seenCursor)
	assert.Equal(t, "user: Start server", got)
	assert.Equal(t, "user: Start server", mem.picks[snippet.PickSaveAs])
}

func TestPicker_CancelIsEmpty(t *testing.T) {
	mem := &fakeMemory{picks: map[string]string{}}
	p := New(mem, nil)
	p.run = func(_ context.Context, m model) (model, error) {
		return update(t, m, key(tea.KeyEsc)), nil
	}

	got, err := p.Pick(context.Background(), snippet.PickRequest{Items: items, SaveAs: "k"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, mem.picks)
}

func TestPicker_MemoryErrorsAreIgnored(t *testing.T) {
	p := New(&fakeMemory{err: errors.New("locked")}, nil)
	p.run = func(_ context.Context, m model) (model, error) {
		return update(t, m, key(tea.KeyEnter)), nil
	}

	got, err := p.Pick(context.Background(), snippet.PickRequest{Items: items, SaveAs: "k"})
	require.NoError(t, err)
	assert.Equal(t, items[0], got)
}

func TestPicker_NotInteractive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	p := New(nil, nil)
	p.In = f
	_, err = p.Pick(context.Background(), snippet.PickRequest{Items: items})
	assert.ErrorIs(t, err, ErrNotInteractive)
}
