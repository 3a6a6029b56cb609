package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/idilsaglam/tada-sync/internal/config"
	"github.com/idilsaglam/tada-sync/internal/devserver"
	"github.com/idilsaglam/tada-sync/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = "-"
	}
	closer, err := logger.Init(cfg.Log.Level, logPath, cfg.Log.JSON)
	if err != nil {
		os.Stderr.WriteString("log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()
	log := logger.Get()

	store, err := devserver.Open(cfg.Dev.DB)
	if err != nil {
		log.Error("open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	server := &http.Server{
		Addr:              cfg.Dev.Addr,
		Handler:           devserver.NewRouter(store, cfg.Dev.APIKey, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("devserver listening", "addr", server.Addr, "db", cfg.Dev.DB, "key_required", cfg.Dev.APIKey != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
