package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/catalog-client/internal/config"
	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/storage/file"
	"github.com/dtroode/catalog-client/internal/storage/memory"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	store, err := tokenStore(cfg.Session, logger)
	if err != nil {
		logger.Fatal("failed to initialize token storage", "error", err)
	}

	a, err := newApp(cfg, store, prometheus.NewRegistry(), logger, os.Stdout)
	if err != nil {
		logger.Fatal("failed to initialize client", "error", err)
	}

	err = a.run(ctx, os.Args[1:])
	a.close()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", model.ErrorMessage(err, err.Error()))
		os.Exit(1)
	}
}

func tokenStore(cfg config.Session, logger *logger.Logger) (model.TokenStore, error) {
	if !cfg.Persist {
		return memory.NewTokenStore(), nil
	}

	path := cfg.TokenFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		path = filepath.Join(dir, "catalog-client", "token")
	}

	store := file.NewTokenStore(path)
	logger.Debug("using token file", "path", store.Path())

	return store, nil
}

func logAppVersion(w io.Writer) {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Fprintf(w, tmpl, buildVersion, buildDate, buildCommit)
}
