// Package app initializes and holds the long-lived harvester services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobpost-harvester/internal/clock/system"
	"github.com/JakeFAU/jobpost-harvester/internal/config"
	"github.com/JakeFAU/jobpost-harvester/internal/crawler"
	collyfetcher "github.com/JakeFAU/jobpost-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/jobpost-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/jobpost-harvester/internal/id/uuid"
	"github.com/JakeFAU/jobpost-harvester/internal/metrics"
	"github.com/JakeFAU/jobpost-harvester/internal/organization"
	"github.com/JakeFAU/jobpost-harvester/internal/pipeline"
	"github.com/JakeFAU/jobpost-harvester/internal/storage/memory"
	"github.com/JakeFAU/jobpost-harvester/internal/storage/postgres"
)

// App holds the shared services used by every command.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    crawler.PostingStore
	registry *organization.Registry
	pipeline *pipeline.Pipeline

	closers []func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the posting store.
func (a *App) Store() crawler.PostingStore {
	return a.store
}

// Registry returns the organization registry.
func (a *App) Registry() *organization.Registry {
	return a.registry
}

// Pipeline returns the harvest pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// New builds every service from cfg. It fails fast when a required service
// cannot be initialized and releases whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	clock := system.New()

	store, err := a.openStore(ctx, clock)
	if err != nil {
		return nil, err
	}
	a.store = store

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		ListingURL:        cfg.Feed.ListingURL,
		DetailURL:         cfg.Feed.DetailURL,
		TrackingToken:     cfg.Feed.TrackingToken,
		UserAgent:         cfg.HTTP.UserAgent,
		Timeout:           cfg.HTTP.Timeout,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	resolver, err := a.openResolver()
	if err != nil {
		return nil, err
	}
	a.registry = organization.NewRegistry(organization.Config{
		Dir:     cfg.Organizations.Dir,
		PageURL: cfg.LinkedIn.CompanyURL,
	}, resolver, logger.Named("organization"))

	a.pipeline = pipeline.New(fetcher, fetcher, store, clock, uuid.New(), pipeline.Config{
		Pager: crawler.PagerConfig{
			PageSize:  cfg.Feed.PageSize,
			MaxOffset: cfg.Feed.MaxOffset,
			Policy:    crawler.NewFixedRetryPolicy(1, cfg.Feed.RetryDelay),
		},
	}, logger.Named("pipeline"))

	a.startMetrics(ctx)
	return a, nil
}

func (a *App) openStore(ctx context.Context, clock crawler.Clock) (crawler.PostingStore, error) {
	if !a.cfg.Persistent() {
		a.logger.Warn("db.dsn not set, postings are kept in memory only")
		return memory.NewPostingStore(clock), nil
	}
	store, err := postgres.NewPostingStore(ctx, postgres.PostingStoreConfig{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		BatchSize:       a.cfg.Enrichment.BatchSize,
	}, clock)
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if a.cfg.DB.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}
	a.logger.Info("connected to postgres", zap.String("table", a.cfg.DB.Table))
	return store, nil
}

func (a *App) openResolver() (crawler.LocatorResolver, error) {
	if !a.cfg.Headless.Enabled {
		a.logger.Info("headless resolver disabled, only saved organizations can be crawled")
		return headless.NewNoop(), nil
	}
	resolver, err := headless.NewChromedp(headless.Config{
		LoginURL:          a.cfg.LinkedIn.LoginURL,
		Username:          a.cfg.LinkedIn.Username,
		Password:          a.cfg.LinkedIn.Password,
		UserAgent:         a.cfg.HTTP.UserAgent,
		NavigationTimeout: a.cfg.Headless.NavigationTimeout,
		LoginSettle:       a.cfg.Headless.LoginSettle,
	}, a.logger.Named("headless"))
	if err != nil {
		return nil, fmt.Errorf("init headless resolver: %w", err)
	}
	a.closers = append(a.closers, resolver.Close)
	return resolver, nil
}

func (a *App) startMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	srvCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	srv := metrics.NewServer(a.cfg.Metrics.Addr, a.logger.Named("metrics"))
	go func() {
		defer close(a.done)
		if err := srv.Run(srvCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close shuts down every service in reverse order of creation.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
