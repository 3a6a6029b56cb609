package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/idilsaglam/tada-sync/internal/auth"
	"github.com/idilsaglam/tada-sync/internal/cli"
	"github.com/idilsaglam/tada-sync/internal/config"
	"github.com/idilsaglam/tada-sync/internal/logger"
	"github.com/idilsaglam/tada-sync/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	groupPending := flag.Bool("group", false, "group output by pending/done")
	theme := flag.String("theme", "", "classic, neon or mono (default from TADA_THEME)")
	flag.Parse()

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		ui.Fail("config: " + err.Error())
		os.Exit(1)
	}
	if *theme != "" {
		cfg.UI.Theme = *theme
	}
	ui.SetTheme(cfg.UI.Theme)

	closer, err := logger.Init(cfg.Log.Level, cfg.Log.File, cfg.Log.JSON)
	if err != nil {
		ui.Fail("log: " + err.Error())
		os.Exit(1)
	}

	store, err := auth.DefaultStore()
	if err != nil {
		ui.Fail("credentials: " + err.Error())
		closer.Close()
		os.Exit(1)
	}

	code := cli.New(cfg, store, logger.Get()).Run(args, cli.Options{
		Group: *groupPending,
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	closer.Close()
	os.Exit(code)
}
