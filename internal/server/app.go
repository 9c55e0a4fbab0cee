// Package server initializes and runs the news engine: it wires the
// repositories, filter chain, intake pipeline, peer sync scheduler, and
// retention sweeper, and supervises them until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/authority"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/control"
	"github.com/dmitrijs2005/newsflow/internal/server/filters"
	"github.com/dmitrijs2005/newsflow/internal/server/intake"
	"github.com/dmitrijs2005/newsflow/internal/server/peersync"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/newsflow/internal/server/services"
	"github.com/dmitrijs2005/newsflow/internal/server/sweep"
)

type App struct {
	provider *config.Provider
	logger   logging.Logger
	manager  repomanager.RepositoryManager

	pipeline *intake.Pipeline
	engine   *peersync.Engine
	sweeper  *sweep.Sweeper

	NewsService *services.NewsService
	UserService *services.UserService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	provider := config.NewProvider(cfg)

	manager, err := repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	verifier := authority.NewVerifier(manager.Users(), authority.OpenPGPVerifier{}, logger)
	chain := filters.DefaultChain(logger)
	applier := control.NewApplier(manager.Groups(), manager.Articles(), manager.Users(), verifier, logger)

	pipeline := intake.NewPipeline(provider, chain, applier,
		manager.Articles(), manager.Groups(), manager.Held(), verifier, logger)

	engine := peersync.NewEngine(provider, manager.Articles(), manager.Groups(),
		manager.Peers(), peersync.NNTPConnector{}, logger)

	var archiver sweep.Archiver
	if s3, err := sweep.NewS3Archiver(ctx, cfg); err != nil {
		return nil, fmt.Errorf("s3 archiver init error: %w", err)
	} else if s3 != nil {
		archiver = s3
	}
	sweeper := sweep.NewSweeper(provider, manager.Articles(), manager.Groups(),
		manager.Held(), archiver, logger)

	return &App{
		provider:    provider,
		logger:      logger,
		manager:     manager,
		pipeline:    pipeline,
		engine:      engine,
		sweeper:     sweeper,
		NewsService: services.NewNewsService(pipeline, provider, manager.Articles(), manager.Groups(), logger),
		UserService: services.NewUserService(manager.Users(), cfg),
	}, nil
}

// initSignalHandler cancels on SIGINT/SIGTERM/SIGQUIT and reloads the
// configuration on SIGHUP.
func (app *App) initSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		for s := range sigs {
			if s == syscall.SIGHUP {
				app.provider.Reload()
				app.logger.Info(ctx, "configuration reloaded")
				continue
			}
			cancel()
			return
		}
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "starting newsflow",
		"site", app.provider.Snapshot().SiteName,
		"workers", app.provider.Snapshot().Workers)

	app.initSignalHandler(ctx, cancel)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.pipeline.Run(ctx) })
	g.Go(func() error { return app.engine.Run(ctx) })
	g.Go(func() error { return app.sweeper.Run(ctx) })

	err := g.Wait()

	if cerr := app.manager.Close(); cerr != nil {
		app.logger.Error(ctx, "closing database", "error", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	app.logger.Info(ctx, "shutdown complete")
	return nil
}
