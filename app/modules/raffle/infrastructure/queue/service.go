package rafflequeue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

const queueName = "raffle"

// Scheduler drives periodic upkeep.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var (
	_ Scheduler = (*RiverScheduler)(nil)
	_ Scheduler = (*TickerScheduler)(nil)
)

// RiverScheduler runs upkeep as a River periodic job. With several
// replicas each period is worked once.
type RiverScheduler struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRiverScheduler connects to dsn, applies River's schema and registers
// the periodic upkeep job.
func NewRiverScheduler(ctx context.Context, dsn string, raffleID raffletypes.RaffleID, every time.Duration, service Upkeeper, logger *slog.Logger) (*RiverScheduler, error) {
	logger = logger.With(attr.String("component", "river_queue"))

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate river schema: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewUpkeepWorker(service, logger))

	periodic := river.NewPeriodicJob(
		river.PeriodicInterval(every),
		func() (river.JobArgs, *river.InsertOpts) {
			return UpkeepJob{RaffleID: raffleID}, &river.InsertOpts{
				Queue:       queueName,
				MaxAttempts: 3,
				UniqueOpts: river.UniqueOpts{
					ByArgs:   true,
					ByPeriod: every,
				},
			}
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			queueName: {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{periodic},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	logger.Info("Raffle upkeep queue initialized", attr.Duration("every", every))
	return &RiverScheduler{client: client, pool: pool, logger: logger}, nil
}

// Start starts the River client.
func (s *RiverScheduler) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.Info("Raffle upkeep queue started")
	return nil
}

// Stop waits for running jobs and closes the pool.
func (s *RiverScheduler) Stop(ctx context.Context) error {
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.logger.Info("Raffle upkeep queue stopped")
	return nil
}

// TickerScheduler runs upkeep on a timer in this process only. It backs
// the memory storage driver where River has no database.
type TickerScheduler struct {
	every   time.Duration
	service Upkeeper
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerScheduler creates a scheduler ticking every interval.
func NewTickerScheduler(every time.Duration, service Upkeeper, logger *slog.Logger) *TickerScheduler {
	return &TickerScheduler{every: every, service: service, logger: logger}
}

// Start launches the tick loop. Calling Start twice is a no-op.
func (s *TickerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	if s.every <= 0 {
		return fmt.Errorf("upkeep interval must be positive, got %s", s.every)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := RunUpkeep(ctx, s.service, s.logger); err != nil {
					s.logger.ErrorContext(ctx, "Upkeep tick failed", attr.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop ends the loop and waits for the running tick.
func (s *TickerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
