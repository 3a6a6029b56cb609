package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/tada-sync/internal/auth"
	"github.com/idilsaglam/tada-sync/internal/config"
	"github.com/idilsaglam/tada-sync/internal/devserver"
	"github.com/idilsaglam/tada-sync/internal/gateway"
	"github.com/idilsaglam/tada-sync/internal/todolist"
	"github.com/idilsaglam/tada-sync/internal/ui"
)

const testKey = "dev-key"

type harness struct {
	app    *App
	api    *gateway.Client
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func setup(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := devserver.Open(filepath.Join(t.TempDir(), "todos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	srv := httptest.NewServer(devserver.NewRouter(store, testKey, log))
	t.Cleanup(srv.Close)

	t.Setenv("TADA_API_URL", srv.URL)
	t.Setenv("TADA_HTTP_TIMEOUT", "5s")
	t.Setenv(auth.EnvToken, "")
	cfg, err := config.Load()
	require.NoError(t, err)

	ui.SetTheme("mono")
	var out, errOut bytes.Buffer
	prevOut, prevErr := ui.Out, ui.ErrOut
	ui.Out, ui.ErrOut = &out, &errOut
	t.Cleanup(func() {
		ui.Out, ui.ErrOut = prevOut, prevErr
		ui.SetTheme("classic")
	})

	app := New(cfg, auth.NewStore(t.TempDir()), log)
	app.In = strings.NewReader("")
	return &harness{
		app:    app,
		api:    gateway.New(srv.URL, gateway.WithAPIKey(testKey)),
		out:    &out,
		errOut: &errOut,
	}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.app.Store.Set(testKey))
}

func TestHelpAndUsage(t *testing.T) {
	h := setup(t)
	assert.Equal(t, 2, h.app.Run(nil, Options{}))
	assert.Equal(t, 0, h.app.Run([]string{"help"}, Options{}))
	assert.Contains(t, h.out.String(), "Subcommands:")

	assert.Equal(t, 2, h.app.Run([]string{"bogus"}, Options{}))
	assert.Contains(t, h.errOut.String(), "unknown subcommand: bogus")

	assert.Equal(t, 2, h.app.Run([]string{"done", "x"}, Options{}))
	assert.Equal(t, 2, h.app.Run([]string{"rm"}, Options{}))
	assert.Equal(t, 2, h.app.Run([]string{"rename", "1"}, Options{}))
	assert.Equal(t, 2, h.app.Run([]string{"auth"}, Options{}))
}

func TestMutationsNeedKey(t *testing.T) {
	h := setup(t)
	assert.Equal(t, 2, h.app.Run([]string{"add", "Buy", "milk"}, Options{}))
	assert.Contains(t, h.errOut.String(), "no API key found")
}

func TestAddListDoneRenameRemove(t *testing.T) {
	h := setup(t)
	h.login(t)
	ctx := context.Background()

	require.Equal(t, 0, h.app.Run([]string{"add", "Buy", "milk"}, Options{}))
	assert.Contains(t, h.out.String(), "added #1")
	require.Equal(t, 2, h.app.Run([]string{"add", "   "}, Options{}))

	require.Equal(t, 0, h.app.Run([]string{"done", "1"}, Options{}))
	assert.Contains(t, h.out.String(), "#1 done")

	require.Equal(t, 0, h.app.Run([]string{"rename", "1", "Buy", "oat", "milk"}, Options{}))
	items, err := h.api.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Buy oat milk", items[0].Title)
	assert.True(t, items[0].Completed)

	h.out.Reset()
	require.Equal(t, 0, h.app.Run([]string{"list"}, Options{Group: true}))
	assert.Contains(t, h.out.String(), "Buy oat milk")
	assert.Contains(t, h.out.String(), "Done")

	require.Equal(t, 0, h.app.Run([]string{"rm", "1"}, Options{}))
	require.Equal(t, 1, h.app.Run([]string{"rm", "1"}, Options{}))
	assert.Contains(t, h.errOut.String(), todolist.MsgDeleteFailed)
}

func TestListFailure(t *testing.T) {
	h := setup(t)
	h.app.Config.API.URL = "http://127.0.0.1:1"
	assert.Equal(t, 1, h.app.Run([]string{"list"}, Options{}))
	assert.Contains(t, h.errOut.String(), todolist.MsgLoadFailed)
}

func TestInteractiveReadOnlyWithoutKey(t *testing.T) {
	h := setup(t)
	var got *todolist.Controller
	h.app.RunTUI = func(c *todolist.Controller) error {
		got = c
		return nil
	}

	require.Equal(t, 0, h.app.Run([]string{"ls"}, Options{}))
	require.NotNil(t, got)
	assert.True(t, got.ReadOnly())

	h.login(t)
	require.Equal(t, 0, h.app.Run([]string{"ls"}, Options{}))
	assert.False(t, got.ReadOnly())

	h.app.RunTUI = func(*todolist.Controller) error { return errors.New("no tty") }
	assert.Equal(t, 1, h.app.Run([]string{"ls"}, Options{}))
}

func TestAuthLoginValidatesKey(t *testing.T) {
	h := setup(t)

	assert.Equal(t, 1, h.app.Run([]string{"auth", "login", "wrong"}, Options{}))
	assert.Empty(t, h.app.Store.Key(), "rejected keys are not stored")

	h.app.In = strings.NewReader(testKey + "\n")
	require.Equal(t, 0, h.app.Run([]string{"auth", "login"}, Options{}))
	assert.Equal(t, testKey, h.app.Store.Key())

	require.Equal(t, 0, h.app.Run([]string{"auth", "validate"}, Options{}))
	require.Equal(t, 0, h.app.Run([]string{"auth", "status"}, Options{}))
	assert.Contains(t, h.out.String(), "source: file")

	require.Equal(t, 0, h.app.Run([]string{"auth", "whoami"}, Options{}))
	assert.Contains(t, h.out.String(), "Opaque key")

	require.Equal(t, 0, h.app.Run([]string{"auth", "logout"}, Options{}))
	assert.Empty(t, h.app.Store.Key())
	assert.Equal(t, 2, h.app.Run([]string{"auth", "whoami"}, Options{}))
}

func TestLogoutWithEnvKey(t *testing.T) {
	h := setup(t)
	t.Setenv(auth.EnvToken, "from-env")
	require.Equal(t, 0, h.app.Run([]string{"auth", "logout"}, Options{}))
	assert.Contains(t, h.out.String(), "nothing to delete")
}
