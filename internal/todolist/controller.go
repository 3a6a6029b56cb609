// Package todolist owns the state of one remote todo list: the local view,
// the last server-confirmed snapshot, staged toggles and in-flight operations.
//
// All state changes happen on the caller's goroutine (the Bubble Tea update
// loop). Operations that talk to the server return a tea.Cmd; the message it
// produces must be handed back to Update.
package todolist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/tada-sync/internal/model"
)

// User-facing failure messages. Underlying errors only go to the log.
const (
	MsgLoadFailed   = "Failed to load todos"
	MsgSaveFailed   = "Failed to save changes"
	MsgAddFailed    = "Failed to add todo"
	MsgDeleteFailed = "Failed to delete todo"
	MsgEmptyTitle   = "Please enter a title"
)

// ErrorTitle heads every failure dialog.
const ErrorTitle = "Error"

// ErrEmptyTitle is raised before any request when the draft is blank.
var ErrEmptyTitle = errors.New("empty title")

// Gateway is what the controller needs from the remote API.
type Gateway interface {
	FetchAll(ctx context.Context) ([]model.Item, error)
	Create(ctx context.Context, title string) (model.Item, error)
	ToggleCompleted(ctx context.Context, id int64) (model.Item, error)
	Delete(ctx context.Context, id int64) error
}

type State int

const (
	Loading State = iota
	Ready
	LoadError
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadError:
		return "load-error"
	}
	return "unknown"
}

// Failure is the error currently shown to the user.
type Failure struct {
	Title   string
	Message string
	Err     error
}

type Options struct {
	// ReadOnly disables every mutating operation.
	ReadOnly bool
	// Timeout bounds each Gateway call; zero means no extra deadline.
	Timeout time.Duration
	Logger  *slog.Logger
}

type Controller struct {
	gw      Gateway
	opt     Options
	log     *slog.Logger
	items   []model.Item
	saved   []model.Item
	failure *Failure

	// load bookkeeping; gen tags the load currently in flight
	gen        uint64
	loading    bool
	loaded     bool
	loadFailed bool

	draft      string
	validation string
	submitting bool
	saving     map[int64]bool
	deleting   map[int64]bool
}

// New returns a controller in the Loading state. Init issues the first load.
func New(gw Gateway, opt Options) *Controller {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		gw:       gw,
		opt:      opt,
		log:      log.With("component", "todolist"),
		items:    []model.Item{},
		saved:    []model.Item{},
		loading:  true,
		gen:      1,
		saving:   map[int64]bool{},
		deleting: map[int64]bool{},
	}
}

// ---------------------------------------------------
// messages
// ---------------------------------------------------

type loadedMsg struct {
	gen   uint64
	items []model.Item
	err   error
}

type savedMsg struct {
	ids     []int64
	results []model.Item
	err     error
}

type addedMsg struct {
	item model.Item
	err  error
}

type deletedMsg struct {
	id  int64
	err error
}

// Update applies the outcome of a command issued by this controller and
// reports whether msg belonged to it. Outcomes are always applied, even if
// the user has moved on; only superseded loads are dropped.
func (c *Controller) Update(msg tea.Msg) bool {
	switch m := msg.(type) {
	case loadedMsg:
		c.applyLoad(m)
	case savedMsg:
		c.applySave(m)
	case addedMsg:
		c.applyAdd(m)
	case deletedMsg:
		c.applyDelete(m)
	default:
		return false
	}
	return true
}

// ---------------------------------------------------
// load
// ---------------------------------------------------

func (c *Controller) Init() tea.Cmd { return c.fetch(c.gen) }

// Reload fetches the list again. Results of earlier loads still in flight
// are discarded when they arrive.
func (c *Controller) Reload() tea.Cmd {
	c.gen++
	c.loading = true
	return c.fetch(c.gen)
}

func (c *Controller) fetch(gen uint64) tea.Cmd {
	gw, timeout := c.gw, c.opt.Timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		items, err := gw.FetchAll(ctx)
		return loadedMsg{gen: gen, items: items, err: err}
	}
}

func (c *Controller) applyLoad(m loadedMsg) {
	if m.gen != c.gen {
		c.log.Debug("dropping stale load", "gen", m.gen, "current", c.gen)
		return
	}
	c.loading = false
	if m.err != nil {
		c.loadFailed = true
		c.fail(MsgLoadFailed, m.err)
		return
	}
	c.loadFailed = false
	c.loaded = true
	c.items = model.Clone(m.items)
	c.saved = model.Clone(m.items)
	c.log.Debug("loaded", "count", len(m.items))
}

// ---------------------------------------------------
// staged toggles
// ---------------------------------------------------

// Toggle flips completed on the local copy only. Unknown ids are ignored.
func (c *Controller) Toggle(id int64) {
	if c.opt.ReadOnly {
		return
	}
	if i := model.Index(c.items, id); i >= 0 {
		c.items[i].Completed = !c.items[i].Completed
	}
}

// Pending returns the ids whose completed flag differs from the saved
// snapshot, in display order.
func (c *Controller) Pending() []int64 {
	var ids []int64
	for _, it := range c.items {
		if j := model.Index(c.saved, it.ID); j >= 0 && c.saved[j].Completed != it.Completed {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (c *Controller) HasPendingChanges() bool { return len(c.Pending()) > 0 }

// Save commits every staged toggle. One toggle call per changed item runs
// concurrently; if any of them fails the whole batch is rolled back locally
// to the saved snapshot. Returns nil when there is nothing to do.
func (c *Controller) Save() tea.Cmd {
	if c.opt.ReadOnly || c.Saving() {
		return nil
	}
	ids := c.Pending()
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		c.saving[id] = true
	}

	gw, timeout := c.gw, c.opt.Timeout
	return func() tea.Msg {
		results := make([]model.Item, len(ids))
		var g errgroup.Group
		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				ctx, cancel := withTimeout(timeout)
				defer cancel()
				it, err := gw.ToggleCompleted(ctx, id)
				if err != nil {
					return err
				}
				results[i] = it
				return nil
			})
		}
		err := g.Wait()
		return savedMsg{ids: ids, results: results, err: err}
	}
}

func (c *Controller) applySave(m savedMsg) {
	for _, id := range m.ids {
		delete(c.saving, id)
	}
	if m.err != nil {
		c.items = model.Clone(c.saved)
		c.fail(MsgSaveFailed, m.err)
		return
	}
	for _, r := range m.results {
		if i := model.Index(c.items, r.ID); i >= 0 {
			c.items[i] = r
		}
		if i := model.Index(c.saved, r.ID); i >= 0 {
			c.saved[i] = r
		}
	}
	c.log.Debug("saved", "count", len(m.results))
}

// ---------------------------------------------------
// add
// ---------------------------------------------------

func (c *Controller) Draft() string { return c.draft }

// SetDraft replaces the add-form input and clears its validation message.
func (c *Controller) SetDraft(s string) {
	c.draft = s
	c.validation = ""
}

// AddItem sets the draft to title and submits it.
func (c *Controller) AddItem(title string) tea.Cmd {
	if c.opt.ReadOnly {
		return nil
	}
	c.SetDraft(title)
	return c.Submit()
}

// Submit creates an item from the trimmed draft. A blank draft only sets the
// validation message. On failure the draft is kept.
func (c *Controller) Submit() tea.Cmd {
	if c.opt.ReadOnly || c.submitting {
		return nil
	}
	title := strings.TrimSpace(c.draft)
	if title == "" {
		c.validation = MsgEmptyTitle
		c.log.Debug("add rejected", "err", ErrEmptyTitle)
		return nil
	}
	c.validation = ""
	c.submitting = true

	gw, timeout := c.gw, c.opt.Timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		it, err := gw.Create(ctx, title)
		return addedMsg{item: it, err: err}
	}
}

func (c *Controller) applyAdd(m addedMsg) {
	c.submitting = false
	if m.err != nil {
		c.fail(MsgAddFailed, m.err)
		return
	}
	c.items = append(c.items, m.item)
	c.saved = append(c.saved, m.item)
	c.draft = ""
}

// ---------------------------------------------------
// delete
// ---------------------------------------------------

// DeleteItem removes an item on the server, then locally. A second delete of
// an id that is already being deleted is ignored.
func (c *Controller) DeleteItem(id int64) tea.Cmd {
	if c.opt.ReadOnly || c.deleting[id] {
		return nil
	}
	if model.Index(c.items, id) < 0 {
		return nil
	}
	c.deleting[id] = true

	gw, timeout := c.gw, c.opt.Timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return deletedMsg{id: id, err: gw.Delete(ctx, id)}
	}
}

func (c *Controller) applyDelete(m deletedMsg) {
	delete(c.deleting, m.id)
	if m.err != nil {
		c.fail(MsgDeleteFailed, m.err)
		return
	}
	c.items = remove(c.items, m.id)
	c.saved = remove(c.saved, m.id)
}

func remove(items []model.Item, id int64) []model.Item {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// ---------------------------------------------------
// failure surface
// ---------------------------------------------------

func (c *Controller) fail(msg string, err error) {
	c.log.Warn(msg, "err", err)
	c.failure = &Failure{Title: ErrorTitle, Message: msg, Err: err}
}

// Err returns the current failure, or nil.
func (c *Controller) Err() *Failure { return c.failure }

// Dismiss clears the current failure and nothing else.
func (c *Controller) Dismiss() { c.failure = nil }

// ValidationError is the add-form message, empty when the draft is fine.
func (c *Controller) ValidationError() string { return c.validation }

// ---------------------------------------------------
// read accessors
// ---------------------------------------------------

func (c *Controller) State() State {
	if c.loaded {
		return Ready
	}
	if c.loading {
		return Loading
	}
	return LoadError
}

// Reloading reports a load in flight while items are already shown.
func (c *Controller) Reloading() bool { return c.loaded && c.loading }

// Stale reports that the last load failed while earlier items are shown.
func (c *Controller) Stale() bool { return c.loaded && c.loadFailed }

func (c *Controller) ReadOnly() bool { return c.opt.ReadOnly }

func (c *Controller) Items() []model.Item { return model.Clone(c.items) }

func (c *Controller) SavedItems() []model.Item { return model.Clone(c.saved) }

func (c *Controller) IsSaving(id int64) bool   { return c.saving[id] }
func (c *Controller) IsDeleting(id int64) bool { return c.deleting[id] }
func (c *Controller) Saving() bool             { return len(c.saving) > 0 }
func (c *Controller) Submitting() bool         { return c.submitting }

func (c *Controller) Stats() (done, pending int) { return model.Stats(c.items) }

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}
