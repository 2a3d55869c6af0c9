package picker

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxVisible = 10

// model is the bubbletea model of a filterable single choice list.
type model struct {
	items    []string
	filtered []int
	cursor   int
	offset   int
	filter   textinput.Model

	chosen    string
	cancelled bool

	cursorStyle lipgloss.Style
	mutedStyle  lipgloss.Style
}

func newModel(items []string, placeholder, preselect string) model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.Focus()

	m := model{
		items:       items,
		filter:      ti,
		cursorStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		mutedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
	m.applyFilter()
	for i, idx := range m.filtered {
		if items[idx] == preselect {
			m.cursor = i
			break
		}
	}
	m.scroll()
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if len(m.filtered) == 0 {
				return m, nil
			}
			m.chosen = m.items[m.filtered[m.cursor]]
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			if m.cursor > 0 {
				m.cursor--
			}
			m.scroll()
			return m, nil
		case tea.KeyDown, tea.KeyCtrlN:
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			m.scroll()
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.applyFilter()
		m.cursor = 0
		m.offset = 0
	}
	return m, cmd
}

func (m model) View() string {
	if m.chosen != "" || m.cancelled {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.filter.View())
	sb.WriteString("\n")

	if len(m.filtered) == 0 {
		sb.WriteString(m.mutedStyle.Render("  no matches"))
		sb.WriteString("\n")
		return sb.String()
	}

	end := min(m.offset+maxVisible, len(m.filtered))
	for i := m.offset; i < end; i++ {
		label := m.items[m.filtered[i]]
		if i == m.cursor {
			sb.WriteString(m.cursorStyle.Render("› " + label))
		} else {
			sb.WriteString("  " + label)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(m.mutedStyle.Render("  ↑/↓ move • enter select • esc cancel"))
	sb.WriteString("\n")
	return sb.String()
}

// applyFilter keeps items containing every whitespace separated filter word.
func (m *model) applyFilter() {
	words := strings.Fields(strings.ToLower(m.filter.Value()))
	filtered := make([]int, 0, len(m.items))
	for i, item := range m.items {
		lower := strings.ToLower(item)
		match := true
		for _, w := range words {
			if !strings.Contains(lower, w) {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, i)
		}
	}
	m.filtered = filtered
}

func (m *model) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxVisible {
		m.offset = m.cursor - maxVisible + 1
	}
}
