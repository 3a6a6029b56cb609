package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/idilsaglam/tada-sync/internal/auth"
	"github.com/idilsaglam/tada-sync/internal/config"
	"github.com/idilsaglam/tada-sync/internal/gateway"
	"github.com/idilsaglam/tada-sync/internal/model"
	"github.com/idilsaglam/tada-sync/internal/todolist"
	"github.com/idilsaglam/tada-sync/internal/tui"
	"github.com/idilsaglam/tada-sync/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group bool // list grouped by pending/done
}

// App carries what subcommands need. Zero-valued hooks get defaults.
type App struct {
	Config config.Config
	Store  *auth.Store
	Log    *slog.Logger
	In     io.Reader

	// RunTUI hosts the interactive list; tests swap it out.
	RunTUI func(*todolist.Controller) error
}

func New(cfg config.Config, store *auth.Store, log *slog.Logger) *App {
	return &App{
		Config: cfg,
		Store:  store,
		Log:    log,
		In:     os.Stdin,
		RunTUI: tui.Run,
	}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func (a *App) Run(args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		return a.doInteractive()

	case "list":
		return a.doList(opt)

	case "add":
		if len(rest) == 0 {
			ui.Fail("usage: todo add <title...>")
			return 2
		}
		return a.doAdd(strings.Join(rest, " "))

	case "done":
		if len(rest) != 1 {
			ui.Fail("usage: todo done <id>")
			return 2
		}
		id, ok := parseID("done", rest[0])
		if !ok {
			return 2
		}
		return a.doToggle(id)

	case "rename":
		if len(rest) < 2 {
			ui.Fail("usage: todo rename <id> <title...>")
			return 2
		}
		id, ok := parseID("rename", rest[0])
		if !ok {
			return 2
		}
		return a.doRename(id, strings.Join(rest[1:], " "))

	case "rm":
		if len(rest) != 1 {
			ui.Fail("usage: todo rm <id>")
			return 2
		}
		id, ok := parseID("rm", rest[0])
		if !ok {
			return 2
		}
		return a.doRemove(id)

	case "auth":
		return a.runAuth(rest)
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.ErrOut)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Fprint(ui.Out, `todo - a tiny client for the remote todo list

Usage:
  todo [--group] [--theme NAME] <subcommand> [args]

Subcommands:
  ls                    Interactive list (read-only without a key)
  list                  Print the list once
  add <title...>        Add a new item (title can be multiple words)
  done <id>             Toggle completed for the item with that id
  rename <id> <title>   Change an item's title
  rm <id>               Delete an item
  auth <login|logout|status|whoami|validate>   API key management

Examples:
  todo add "Buy milk"
  todo ls
  todo done 2
  todo rm 3
`)
}

func parseID(cmd, s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		ui.Fail(cmd + ": not a valid id: " + s)
		return 0, false
	}
	return id, true
}

// -------------- gateway plumbing ----------------

func (a *App) client(key string) *gateway.Client {
	return gateway.New(a.Config.API.URL,
		gateway.WithAPIKey(key),
		gateway.WithTimeout(a.Config.API.RequestTimeout()),
		gateway.WithLogger(a.Log),
	)
}

func (a *App) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*a.Config.API.RequestTimeout()+time.Second)
}

// ensureAuth returns the key for mutating subcommands.
func (a *App) ensureAuth() (string, int) {
	key := a.Store.Key()
	if key == "" {
		ui.Fail("no API key found. Set " + auth.EnvToken + " or run `todo auth login`")
		return "", 2
	}
	return key, 0
}

// -------------- subcommand impls ----------------

func (a *App) doInteractive() int {
	key := a.Store.Key()
	ctl := todolist.New(a.client(key), todolist.Options{
		ReadOnly: key == "",
		Timeout:  a.Config.API.RequestTimeout(),
		Logger:   a.Log,
	})
	if err := a.RunTUI(ctl); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func (a *App) doList(opt Options) int {
	ctx, cancel := a.ctx()
	defer cancel()
	items, err := a.client("").FetchAll(ctx)
	if err != nil {
		a.Log.Warn("list failed", "err", err)
		ui.Fail(todolist.MsgLoadFailed)
		return 1
	}

	d, p := model.Stats(items)
	t := ui.Current()
	var lines []string
	lines = append(lines, ui.Header(d, p))
	lines = append(lines, t.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")

	if opt.Group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(lines)
	return 0
}

func (a *App) doAdd(title string) int {
	title = strings.TrimSpace(title)
	if title == "" {
		ui.Fail("add: " + todolist.MsgEmptyTitle)
		return 2
	}
	key, code := a.ensureAuth()
	if code != 0 {
		return code
	}
	ctx, cancel := a.ctx()
	defer cancel()
	it, err := a.client(key).Create(ctx, title)
	if err != nil {
		a.Log.Warn("add failed", "err", err)
		ui.Fail(todolist.MsgAddFailed)
		return 1
	}
	ui.OK(fmt.Sprintf("added #%d", it.ID))
	return 0
}

func (a *App) doToggle(id int64) int {
	key, code := a.ensureAuth()
	if code != 0 {
		return code
	}
	ctx, cancel := a.ctx()
	defer cancel()
	it, err := a.client(key).ToggleCompleted(ctx, id)
	if err != nil {
		a.Log.Warn("toggle failed", "id", id, "err", err)
		ui.Fail(todolist.MsgSaveFailed)
		ui.Hint("Hint: run `todo list` to see valid ids")
		return 1
	}
	if it.Completed {
		ui.OK(fmt.Sprintf("#%d done", id))
	} else {
		ui.OK(fmt.Sprintf("#%d reopened", id))
	}
	return 0
}

func (a *App) doRename(id int64, title string) int {
	title = strings.TrimSpace(title)
	if title == "" {
		ui.Fail("rename: " + todolist.MsgEmptyTitle)
		return 2
	}
	key, code := a.ensureAuth()
	if code != 0 {
		return code
	}
	ctx, cancel := a.ctx()
	defer cancel()
	if _, err := a.client(key).UpdateTitle(ctx, id, title); err != nil {
		a.Log.Warn("rename failed", "id", id, "err", err)
		ui.Fail(todolist.MsgSaveFailed)
		return 1
	}
	ui.OK("renamed")
	return 0
}

func (a *App) doRemove(id int64) int {
	key, code := a.ensureAuth()
	if code != 0 {
		return code
	}
	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.client(key).Delete(ctx, id); err != nil {
		a.Log.Warn("delete failed", "id", id, "err", err)
		ui.Fail(todolist.MsgDeleteFailed)
		ui.Hint("Hint: run `todo list` to see valid ids")
		return 1
	}
	ui.OK("removed")
	return 0
}

// -------------- rendering helpers --------------

func flatLines(items []model.Item) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{t.Muted.Render("no items")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		idx := fmt.Sprintf("%3d.", it.ID)
		box := t.Muted.Render(t.BoxUnchecked)
		title := it.Title
		if len(title) > 80 {
			title = title[:77] + "..."
		}
		if it.Completed {
			box = t.Success.Render(t.BoxChecked)
			title = t.Done.Render(title)
		}
		out = append(out, fmt.Sprintf("%s %s %s", t.Muted.Render(idx), box, title))
	}
	return out
}

func groupLines(items []model.Item) []string {
	t := ui.Current()
	var pend, done []model.Item
	for _, it := range items {
		if it.Completed {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}

// readLine reads one trimmed line from a.In.
func (a *App) readLine() (string, error) {
	line, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
