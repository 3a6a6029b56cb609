package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/idilsaglam/tada-sync/internal/auth"
	"github.com/idilsaglam/tada-sync/internal/ui"
)

const authUsage = "usage: todo auth <login|logout|status|whoami|validate>"

func (a *App) runAuth(args []string) int {
	if len(args) == 0 {
		ui.Fail(authUsage)
		return 2
	}
	switch args[0] {
	case "login":
		key := ""
		if len(args) > 1 {
			key = args[1]
		}
		return a.doAuthLogin(key)
	case "logout":
		return a.doAuthLogout()
	case "status":
		return a.doAuthStatus()
	case "whoami":
		return a.doAuthWhoAmI()
	case "validate":
		return a.doAuthValidate()
	}
	ui.Fail(authUsage)
	return 2
}

// doAuthLogin stores the key only after the server accepted it.
func (a *App) doAuthLogin(key string) int {
	if key == "" {
		fmt.Fprint(ui.Out, "Paste your API key: ")
		line, err := a.readLine()
		if err != nil {
			ui.Fail("read key: " + err.Error())
			return 1
		}
		key = line
	}
	key = auth.StripBearer(key)
	if key == "" {
		ui.Fail("login: empty key")
		return 2
	}

	ctx, cancel := a.ctx()
	defer cancel()
	if !a.client(key).ValidateKey(ctx) {
		ui.Fail("login: key was rejected")
		return 1
	}
	if err := a.Store.Set(key); err != nil {
		ui.Fail("save key: " + err.Error())
		return 1
	}
	ui.OK("logged in")
	return 0
}

func (a *App) doAuthLogout() int {
	ti, _ := a.Store.Get()
	if ti != nil && ti.Source == auth.SourceEnv {
		ui.OK("key is provided by " + auth.EnvToken + " env var (nothing to delete)")
		return 0
	}
	if err := a.Store.Delete(); err != nil {
		ui.Fail("logout: " + err.Error())
		return 1
	}
	ui.OK("logged out")
	return 0
}

func (a *App) doAuthStatus() int {
	ti, err := a.Store.Get()
	if err != nil {
		ui.Fail("status: " + err.Error())
		return 1
	}
	if ti == nil {
		fmt.Fprintln(ui.Out, ui.Current().Muted.Render("not logged in (read-only)"))
		fmt.Fprintln(ui.Out, "Run: todo auth login")
		return 0
	}
	fmt.Fprintf(ui.Out, "source: %s\n", ti.Source)
	if ti.ExpiresAt != nil {
		fmt.Fprintf(ui.Out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(ui.Out, "expires: (unknown)")
	}
	fmt.Fprintf(ui.Out, "api: %s\n", a.Config.API.URL)
	fmt.Fprintln(ui.Out, "env override: "+auth.EnvToken)
	return 0
}

// whoami decodes a JWT locally (unverified); opaque keys print basic info.
func (a *App) doAuthWhoAmI() int {
	ti, _ := a.Store.Get()
	if ti == nil {
		ui.Fail("not logged in. Run: todo auth login")
		return 2
	}
	if claims, ok := auth.Claims(ti.Token); ok {
		b, err := json.MarshalIndent(claims, "", "  ")
		if err == nil {
			fmt.Fprintln(ui.Out, "JWT payload:")
			fmt.Fprintln(ui.Out, string(b))
			return 0
		}
	}
	fmt.Fprintln(ui.Out, "Opaque key (cannot introspect locally).")
	fmt.Fprintln(ui.Out, "source:", ti.Source)
	return 0
}

func (a *App) doAuthValidate() int {
	key, code := a.ensureAuth()
	if code != 0 {
		return code
	}
	ctx, cancel := a.ctx()
	defer cancel()
	if !a.client(key).ValidateKey(ctx) {
		ui.Fail("key was rejected")
		return 1
	}
	ui.OK("key is valid")
	return 0
}
