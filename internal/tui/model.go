// Package tui hosts a todolist.Controller in a Bubble Tea program.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/tada-sync/internal/model"
	"github.com/idilsaglam/tada-sync/internal/todolist"
	"github.com/idilsaglam/tada-sync/internal/ui"
)

type Model struct {
	ctl  *todolist.Controller
	keys keyMap
	help help.Model
	spin spinner.Model
	ti   textinput.Model

	cursor int
	adding bool

	// set after q with unsaved changes; a second q quits anyway
	confirmQuit bool

	width, height int
}

func New(ctl *todolist.Controller) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "New item title..."
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctl:    ctl,
		keys:   newKeyMap(ctl.ReadOnly()),
		help:   help.New(),
		spin:   sp,
		ti:     ti,
		width:  80,
		height: 24,
	}
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctl *todolist.Controller) error {
	_, err := tea.NewProgram(New(ctl), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ctl.Init(), m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.ctl.Update(msg) {
		m.afterOutcome()
		return m, nil
	}

	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	}

	if m.dialog().Handle(msg) {
		return m, nil
	}
	if m.adding {
		return m.updateAdding(msg)
	}

	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if !key.Matches(k, m.keys.Quit) {
		m.confirmQuit = false
	}

	switch {
	case key.Matches(k, m.keys.Quit):
		if m.ctl.HasPendingChanges() && !m.confirmQuit {
			m.confirmQuit = true
			return m, nil
		}
		return m, tea.Quit
	case key.Matches(k, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(k, m.keys.Down):
		if m.cursor < len(m.ctl.Items())-1 {
			m.cursor++
		}
	case key.Matches(k, m.keys.Toggle):
		if id, ok := m.selected(); ok {
			m.ctl.Toggle(id)
		}
	case key.Matches(k, m.keys.Save):
		return m, m.ctl.Save()
	case key.Matches(k, m.keys.Delete):
		if id, ok := m.selected(); ok {
			return m, m.ctl.DeleteItem(id)
		}
	case key.Matches(k, m.keys.Add):
		m.adding = true
		m.ti.SetValue(m.ctl.Draft())
		m.ti.CursorEnd()
		return m, m.ti.Focus()
	case key.Matches(k, m.keys.Reload):
		return m, tea.Batch(m.ctl.Reload(), m.spin.Tick)
	case key.Matches(k, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			m.ctl.SetDraft(m.ti.Value())
			return m, m.ctl.Submit()
		case "esc":
			m.adding = false
			m.ti.Blur()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	if m.ti.Value() != m.ctl.Draft() {
		m.ctl.SetDraft(m.ti.Value())
	}
	return m, cmd
}

// afterOutcome syncs view-only state with the controller after a command
// result was applied.
func (m *Model) afterOutcome() {
	if n := len(m.ctl.Items()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if m.adding && !m.ctl.Submitting() && m.ctl.Draft() == "" {
		m.adding = false
		m.ti.SetValue("")
		m.ti.Blur()
	}
}

func (m Model) selected() (int64, bool) {
	items := m.ctl.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return 0, false
	}
	return items[m.cursor].ID, true
}

func (m Model) dialog() ui.Dialog {
	f := m.ctl.Err()
	d := ui.Dialog{Visible: f != nil, OnClose: m.ctl.Dismiss}
	if f != nil {
		d.Title, d.Message = f.Title, f.Message
	}
	return d
}

// ---------------------------------------------------
// view
// ---------------------------------------------------

func (m Model) View() string {
	t := ui.Current()
	var b strings.Builder

	done, pending := m.ctl.Stats()
	header := ui.Header(done, pending)
	if m.ctl.ReadOnly() {
		header += "  " + t.Muted.Render("(read-only)")
	}
	b.WriteString(header + "\n")

	switch m.ctl.State() {
	case todolist.Loading:
		b.WriteString("\n" + m.spin.View() + " Loading todos...\n")
	case todolist.LoadError:
		b.WriteString("\n" + t.Muted.Render("Nothing to show. Press r to retry.") + "\n")
	case todolist.Ready:
		b.WriteString(t.Muted.Render(ui.ProgressBar(done, done+pending, 28)) + "\n\n")
		b.WriteString(m.listView())
		if m.ctl.Reloading() {
			b.WriteString("\n" + m.spin.View() + " Refreshing...")
		} else if m.ctl.Stale() {
			b.WriteString("\n" + t.Pending.Render("Showing the last loaded list."))
		}
	}

	if m.adding {
		b.WriteString("\n" + m.addView())
	}
	if m.ctl.Saving() {
		b.WriteString("\n" + m.spin.View() + " Saving...")
	} else if m.ctl.HasPendingChanges() && !m.ctl.ReadOnly() {
		n := len(m.ctl.Pending())
		b.WriteString("\n" + t.Accent.Render(fmt.Sprintf("%d unsaved change(s), press s to save", n)))
	}
	if m.confirmQuit {
		b.WriteString("\n" + t.Error.Render("Unsaved changes will be lost. Press q again to quit."))
	}

	b.WriteString("\n\n" + m.help.View(m.keys))

	view := ui.PanelString(b.String())
	if d := m.dialog(); d.Visible {
		view += "\n" + d.View(min(m.width-4, 60))
	}
	return view
}

func (m Model) listView() string {
	t := ui.Current()
	items := m.ctl.Items()
	if len(items) == 0 {
		return t.Muted.Render("no items") + "\n"
	}
	saved := m.ctl.SavedItems()

	var b strings.Builder
	for i, it := range items {
		prefix := "  "
		if i == m.cursor {
			prefix = t.Selected.Render(">") + " "
		}
		b.WriteString(prefix + renderItem(it, changed(it, saved)))
		switch {
		case m.ctl.IsDeleting(it.ID):
			b.WriteString(" " + t.Muted.Render("deleting..."))
		case m.ctl.IsSaving(it.ID):
			b.WriteString(" " + t.Muted.Render("saving..."))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderItem(it model.Item, dirty bool) string {
	t := ui.Current()
	box := t.Muted.Render(t.BoxUnchecked)
	text := it.Title
	if it.Completed {
		box = t.Success.Render(t.BoxChecked)
		text = t.Done.Render(text)
	}
	line := box + " " + text
	if dirty {
		line += t.Accent.Render(" *")
	}
	return line
}

func changed(it model.Item, saved []model.Item) bool {
	j := model.Index(saved, it.ID)
	return j >= 0 && saved[j].Completed != it.Completed
}

func (m Model) addView() string {
	t := ui.Current()
	title := "Add new item"
	if m.ctl.Submitting() {
		title += " " + m.spin.View()
	}
	if v := m.ctl.ValidationError(); v != "" {
		title += " " + t.Error.Render(v)
	}
	return ui.PanelString(title + "\n" + m.ti.View())
}
