package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Select key.Binding
	Next   key.Binding
	Prev   key.Binding
	Finish key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Select: key.NewBinding(key.WithKeys("a", "b", "c", "d", "1", "2", "3", "4"), key.WithHelp("a-d", "choose")),
		Next:   key.NewBinding(key.WithKeys("right", "n", "l"), key.WithHelp("→/n", "next")),
		Prev:   key.NewBinding(key.WithKeys("left", "p", "h"), key.WithHelp("←/p", "prev")),
		Finish: key.NewBinding(key.WithKeys("f", "enter"), key.WithHelp("f", "finish")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Prev, k.Next, k.Finish, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// optionIndex maps a pressed key to a zero-based option.
func optionIndex(s string) (int, bool) {
	switch s {
	case "a", "1":
		return 0, true
	case "b", "2":
		return 1, true
	case "c", "3":
		return 2, true
	case "d", "4":
		return 3, true
	}
	return 0, false
}
