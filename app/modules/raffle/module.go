package raffle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/raffle-bot/app/eventbus"
	raffleservice "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/application"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	raffleapi "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/api"
	rafflehandlers "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/handlers"
	rafflemetrics "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/metrics"
	raffleoracle "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/oracle"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	rafflequeue "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/queue"
	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	rafflerouter "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/router"
	"github.com/Black-And-White-Club/raffle-bot/app/observability"
	"github.com/Black-And-White-Club/raffle-bot/config"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Module represents the raffle module.
type Module struct {
	Service      raffleservice.Service
	RaffleRouter *rafflerouter.RaffleRouter
	HTTPHandler  http.Handler

	scheduler rafflequeue.Scheduler
	local     *raffleoracle.LocalCoordinator
	logger    *slog.Logger

	cancelFunc context.CancelFunc
}

// NewRaffleModule wires the raffle service to storage, the oracle, the bus
// and the HTTP API. db is nil with the memory storage driver.
func NewRaffleModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	db *bun.DB,
	eventBus eventbus.EventBus,
	router *message.Router,
) (*Module, error) {
	logger := obs.Logger.With(slog.String("module", "raffle"))
	metrics := rafflemetrics.NewPrometheus(obs.Registry)

	logger.InfoContext(ctx, "Initializing raffle module",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("oracle", cfg.Oracle.Driver),
		slog.String("event_bus", cfg.EventBus.Driver),
	)

	var (
		repo   raffledb.Repository
		payout rafflepayout.Executor
	)
	if db != nil {
		repo = raffledb.NewRepository(db)
		payout = rafflepayout.NewLedgerExecutor(db)
	} else {
		repo = raffledb.NewMemoryRepository()
		payout = rafflepayout.NewMemoryWallet()
	}

	var (
		coordinator raffleoracle.Coordinator
		local       *raffleoracle.LocalCoordinator
		opts        []raffleservice.Option
	)
	switch cfg.Oracle.Driver {
	case "bus":
		coordinator = raffleoracle.NewBusCoordinator(eventBus, logger)
		if cfg.Oracle.VerifyKey != "" {
			verifier, err := raffleoracle.NewVerifierFromHex(cfg.Oracle.VerifyKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load oracle verify key: %w", err)
			}
			opts = append(opts, raffleservice.WithVerifier(verifier))
		}
	default:
		localOpts := []raffleoracle.LocalOption{
			raffleoracle.WithRequestIDPrefix(uuid.NewString()[:8]),
		}
		if cfg.Oracle.AutoFulfill {
			localOpts = append(localOpts, raffleoracle.WithAutoFulfill(cfg.Oracle.FulfillDelay.Std()))
		}
		local = raffleoracle.NewLocalCoordinator(logger, localOpts...)
		coordinator = local
		opts = append(opts, raffleservice.WithVerifier(local.Verifier()))
	}

	settings := raffleservice.Settings{
		RaffleID:             raffletypes.RaffleID(cfg.Raffle.ID),
		EntranceFee:          raffletypes.Amount(cfg.Raffle.EntranceFee),
		Interval:             cfg.Raffle.Interval.Std(),
		KeyHash:              cfg.Oracle.KeyHash,
		SubscriptionID:       cfg.Oracle.SubscriptionID,
		MinimumConfirmations: cfg.Oracle.MinimumConfirmations,
		CallbackGasLimit:     cfg.Oracle.CallbackGasLimit,
		NumWords:             cfg.Oracle.NumWords,
		RequestTimeout:       cfg.Oracle.RequestTimeout.Std(),
	}

	service := raffleservice.NewRaffleService(repo, payout, coordinator, eventBus, logger, metrics, obs.Tracer, db, settings, opts...)

	if local != nil {
		local.SetConsumer(func(ctx context.Context, id raffletypes.RequestID, words []*big.Int, proof []byte) error {
			_, err := service.FulfillRandomWords(ctx, id, words, proof)
			return err
		})
	}

	info, err := service.InitializeRaffle(ctx)
	if err != nil {
		if local != nil {
			_ = local.Close()
		}
		return nil, fmt.Errorf("failed to initialize raffle: %w", err)
	}

	// A local coordinator starts empty; a round left CALCULATING by a previous
	// process needs a request this one can fulfill.
	if local != nil && info.State == raffletypes.StateCalculating {
		id, err := service.ReissuePendingRequest(ctx)
		if err != nil {
			_ = local.Close()
			return nil, fmt.Errorf("failed to re-issue pending request: %w", err)
		}
		if id != nil {
			logger.InfoContext(ctx, "Adopted calculating round", slog.String("request_id", string(*id)))
		}
	}

	handlers := rafflehandlers.NewRaffleHandlers(service, settings.RaffleID, logger)
	raffleRouter := rafflerouter.NewRaffleRouter(logger, router, eventBus, eventBus, obs.Tracer, obs.Registry)
	if err := raffleRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure raffle router: %w", err)
	}

	var scheduler rafflequeue.Scheduler
	if db != nil {
		s, err := rafflequeue.NewRiverScheduler(ctx, cfg.Postgres.DSN, settings.RaffleID, cfg.Upkeep.PollInterval.Std(), service, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create upkeep queue: %w", err)
		}
		scheduler = s
	} else {
		scheduler = rafflequeue.NewTickerScheduler(cfg.Upkeep.PollInterval.Std(), service, logger)
	}

	httpHandler := raffleapi.NewRouter(raffleapi.NewHTTPHandlers(service, logger), raffleapi.Config{
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		EntryRateLimit: cfg.HTTP.EntryRateLimit,
		EntryBurst:     cfg.HTTP.EntryBurst,
	})

	return &Module{
		Service:      service,
		RaffleRouter: raffleRouter,
		HTTPHandler:  httpHandler,
		scheduler:    scheduler,
		local:        local,
		logger:       logger,
	}, nil
}

// Run starts upkeep automation and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}
	m.logger.InfoContext(ctx, "Starting raffle module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if err := m.scheduler.Start(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to start upkeep scheduler", slog.Any("error", err))
		return
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Raffle module goroutine stopped")
}

// Close stops the scheduler and the local coordinator.
func (m *Module) Close() error {
	m.logger.Info("Stopping raffle module")
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if err := m.scheduler.Stop(ctx); err != nil {
		m.logger.Error("Error stopping upkeep scheduler", slog.Any("error", err))
		firstErr = err
	}
	if m.local != nil {
		if err := m.local.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.logger.Info("Raffle module stopped")
	return firstErr
}
