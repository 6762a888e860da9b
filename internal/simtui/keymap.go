package simtui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mabhi256/gcscan/utils"
)

// KeyMap defines the key bindings
type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Tab     key.Binding
	Pause   key.Binding
	Step    key.Binding
	Restart key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Pause, k.Restart, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Tab},
		{k.Pause, k.Step, k.Restart, k.Quit},
	}
}

var keys = KeyMap{
	Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev tab")),
	Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next tab")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
	Pause:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
	Step:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "single cycle")),
	Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab), key.Matches(msg, keys.Right):
		utils.CycleEnumPtr(&m.activeTab, 1, tabMax)

	case key.Matches(msg, keys.Left):
		utils.CycleEnumPtr(&m.activeTab, -1, tabMax)

	case key.Matches(msg, keys.Pause):
		m.paused = !m.paused

	case key.Matches(msg, keys.Step):
		if m.paused && !m.done {
			m.step()
		}

	case key.Matches(msg, keys.Restart):
		m.restart()

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}
