package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dialog is a blocking error box with a single OK action. It keeps no
// state; the caller owns Visible and decides what OnClose does.
type Dialog struct {
	Visible bool
	Title   string
	Message string
	OnClose func()
}

// Acknowledge runs OnClose and nothing else.
func (d Dialog) Acknowledge() {
	if d.OnClose != nil {
		d.OnClose()
	}
}

// Handle swallows every key while the dialog is visible; enter, space, esc
// and "o" acknowledge it. It reports whether msg was consumed.
func (d Dialog) Handle(msg tea.Msg) bool {
	if !d.Visible {
		return false
	}
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return false
	}
	switch k.String() {
	case "enter", " ", "esc", "o", "O":
		d.Acknowledge()
	}
	return true
}

// View renders the dialog, or "" when hidden.
func (d Dialog) View(width int) string {
	if !d.Visible {
		return ""
	}
	t := Current()
	if width < 24 {
		width = 24
	}
	box := lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.Error.GetForeground()).
		Padding(0, 2).
		Width(width)

	button := t.Selected.Render(" OK ")
	body := lipgloss.JoinVertical(lipgloss.Left,
		t.Error.Render("⚠ "+d.Title),
		"",
		d.Message,
		"",
		button,
	)
	return box.Render(body)
}
