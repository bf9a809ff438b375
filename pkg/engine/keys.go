package engine

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap is the keyboard surface of an active tour.
type KeyMap struct {
	Prev     key.Binding
	Next     key.Binding
	Skip     key.Binding
	Complete key.Binding
}

// DefaultKeyMap returns the stock bindings: arrows step, escape skips,
// enter finishes on the last step.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Prev: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next"),
		),
		Skip: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "skip tour"),
		),
		Complete: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "finish"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Skip, k.Complete}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Key is a key name such as "left" or "esc", for hosts that do not have a
// tea.KeyMsg at hand.
type Key string

func (k Key) String() string { return string(k) }

// HandleKey applies a key press to the active tour. It reports whether the
// key was consumed.
func (e *Engine) HandleKey(k fmt.Stringer) bool {
	if !e.machine.Active() {
		return false
	}
	switch {
	case key.Matches(k, e.keys.Prev):
		return e.machine.Prev()
	case key.Matches(k, e.keys.Next):
		return e.machine.Next()
	case key.Matches(k, e.keys.Skip):
		return e.SkipTour()
	case key.Matches(k, e.keys.Complete):
		if e.machine.IsLast() {
			return e.CompleteTour()
		}
	}
	return false
}
