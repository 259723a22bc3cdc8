package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dtroode/catalog-client/internal/api"
	"github.com/dtroode/catalog-client/internal/catalog"
	"github.com/dtroode/catalog-client/internal/config"
	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/querycache"
	"github.com/dtroode/catalog-client/internal/service"
)

var errNotLoggedIn = errors.New("not logged in, run login first")

// app wires the client library together for one CLI invocation.
type app struct {
	logger       *logger.Logger
	out          io.Writer
	session      *service.Session
	cache        *querycache.Cache
	catalog      *service.Catalog
	interactions *service.Interactions
	tracker      *service.Tracker
	browser      *catalog.Browser
}

func newApp(cfg *config.Config, store model.TokenStore, reg prometheus.Registerer, logger *logger.Logger, out io.Writer) (*app, error) {
	client, err := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		TLS: api.TLSOptions{
			CAFile:   cfg.API.CAFile,
			CertFile: cfg.API.CertFile,
			KeyFile:  cfg.API.KeyFile,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	cache, err := querycache.New(cfg.Cache.Size, querycache.NewMetrics(reg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	session := service.NewSession(client, store, logger)
	// history and analytics belong to the user, drop them whenever the token
	// changes hands: logout, expiry or a login as someone else
	var mu sync.Mutex
	lastToken := session.State().Token
	session.Subscribe(func(st model.SessionState) {
		mu.Lock()
		changed := st.Token != lastToken
		lastToken = st.Token
		mu.Unlock()
		if changed {
			cache.Reset()
		}
	})

	authed := client.WithTokenSource(session)
	catalogService := service.NewCatalog(authed, cache, logger)
	interactions := service.NewInteractions(authed, cache, logger)

	return &app{
		logger:       logger,
		out:          out,
		session:      session,
		cache:        cache,
		catalog:      catalogService,
		interactions: interactions,
		tracker:      service.NewTracker(interactions, cfg.Tracking.Timeout, logger),
		browser:      catalog.NewBrowser(catalogService, cfg.Catalog.PageSize, logger),
	}, nil
}

// close waits for background tracking to finish.
func (a *app) close() {
	a.tracker.Wait()
}

// rootCmd builds the command tree. Errors are returned to main rather than
// printed by cobra.
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalog-client",
		Short:         "Browse the product catalog and track your activity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetErr(a.out)

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.profileCmd(),
		a.passwdCmd(),
		a.productsCmd(),
		a.productCmd(),
		a.categoriesCmd(),
		a.statsCmd(),
		a.historyCmd(),
		a.analyticsCmd(),
		a.trackCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) run(ctx context.Context, args []string) error {
	// cobra falls back to os.Args on nil
	if args == nil {
		args = []string{}
	}

	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// requireAuth restores the stored session and fails when there is none.
func (a *app) requireAuth(ctx context.Context) error {
	if err := a.session.RestoreSession(ctx); err != nil {
		return err
	}
	if !a.session.State().IsAuthenticated {
		return errNotLoggedIn
	}
	return nil
}
