package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/raffle-bot/app/eventbus"
	"github.com/Black-And-White-Club/raffle-bot/app/modules/raffle"
	"github.com/Black-And-White-Club/raffle-bot/app/observability"
	"github.com/Black-And-White-Club/raffle-bot/config"
	"github.com/Black-And-White-Club/raffle-bot/db/bundb"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// App holds the process-wide dependencies and the raffle module.
type App struct {
	Config        *config.Config
	Observability *observability.Observability
	Logger        *slog.Logger
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	RaffleModule  *raffle.Module

	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewApp builds every dependency from cfg. Storage migrations run before the
// module initializes the round.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	obs := observability.New(cfg.Observability)
	logger := obs.Logger

	app := &App{
		Config:        cfg,
		Observability: obs,
		Logger:        logger,
	}

	if cfg.Storage.Driver == "postgres" {
		db, err := bundb.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := bundb.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, err
		}
		app.DB = db
	}

	eventBus, err := eventbus.NewEventBus(ctx, eventbus.Config{
		Driver:     cfg.EventBus.Driver,
		URL:        cfg.NATS.URL,
		NKeySeed:   cfg.NATS.NKeySeed,
		QueueGroup: cfg.NATS.QueueGroup,
	}, logger)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	app.EventBus = eventBus

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		app.closeBus()
		app.closeDB()
		return nil, fmt.Errorf("failed to create Watermill router: %w", err)
	}
	app.Router = router

	module, err := raffle.NewRaffleModule(ctx, cfg, obs, app.DB, eventBus, router)
	if err != nil {
		app.closeBus()
		app.closeDB()
		return nil, fmt.Errorf("failed to initialize raffle module: %w", err)
	}
	app.RaffleModule = module

	mux := chi.NewRouter()
	mux.Mount("/", module.HTTPHandler)
	if cfg.Observability.MetricsAddress == "" {
		mux.Handle("/metrics", obs.MetricsHandler())
	}
	app.httpServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return app, nil
}

// Run starts the message router, the module, the metrics endpoint and the
// HTTP API, then blocks until ctx is done.
func (app *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("watermill router: %w", err)
		}
	}()
	select {
	case <-app.Router.Running():
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}

	app.wg.Add(1)
	go app.RaffleModule.Run(ctx, &app.wg)

	if addr := app.Config.Observability.MetricsAddress; addr != "" {
		go func() {
			if err := app.Observability.ServeMetrics(ctx, addr); err != nil {
				errCh <- err
			}
		}()
	}

	if app.httpServer.Addr != "" {
		go func() {
			app.Logger.Info("HTTP API listening", slog.String("address", app.httpServer.Addr))
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close shuts everything down in reverse start order.
func (app *App) Close() error {
	var errs []error

	if app.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		cancel()
	}

	if app.RaffleModule != nil {
		if err := app.RaffleModule.Close(); err != nil {
			errs = append(errs, fmt.Errorf("raffle module: %w", err))
		}
	}
	app.wg.Wait()

	if app.Router != nil {
		if err := app.Router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("watermill router: %w", err))
		}
	}
	if err := app.closeBus(); err != nil {
		errs = append(errs, err)
	}
	if err := app.closeDB(); err != nil {
		errs = append(errs, err)
	}

	app.Logger.Info("Application shut down")
	return errors.Join(errs...)
}

func (app *App) closeBus() error {
	if app.EventBus == nil {
		return nil
	}
	if err := app.EventBus.Close(); err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	return nil
}

func (app *App) closeDB() error {
	if app.DB == nil {
		return nil
	}
	if err := app.DB.Close(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
