package main

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the catalog bindings; it doubles as the help.KeyMap.
type keyMap struct {
	Left   key.Binding
	Right  key.Binding
	Select key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "catégorie précédente"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "catégorie suivante"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("entrée", "choisir"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quitter"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Select, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Left, k.Right}, {k.Select, k.Quit}}
}
