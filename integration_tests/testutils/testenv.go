//go:build integration

package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/raffle-bot/app/eventbus"
	"github.com/Black-And-White-Club/raffle-bot/db/bundb"
	"github.com/Black-And-White-Club/raffle-bot/integration_tests/containers"
)

// TestEnvironment holds all resources needed for integration testing.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer *nats.NATSContainer
	DB            *bun.DB
	DSN           string
	NatsURL       string
	Logger        *slog.Logger
}

// Options selects the containers a package needs.
type Options struct {
	WithNATS bool
}

// NewTestEnvironment starts Postgres (and NATS when asked) and applies the
// raffle schema.
func NewTestEnvironment(opts Options) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup postgres container: %w", err)
	}
	env.PgContainer = pgContainer
	env.DSN = dsn

	db, err := bundb.Open(ctx, dsn)
	if err != nil {
		env.Cleanup()
		return nil, err
	}
	env.DB = db

	if err := bundb.Migrate(ctx, db, env.Logger); err != nil {
		env.Cleanup()
		return nil, err
	}

	if opts.WithNATS {
		natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
		if err != nil {
			env.Cleanup()
			return nil, fmt.Errorf("failed to setup nats container: %w", err)
		}
		env.NatsContainer = natsContainer
		env.NatsURL = natsURL
	}

	return env, nil
}

// NewEventBus connects a JetStream backed bus with its own durable prefix.
func (env *TestEnvironment) NewEventBus(queueGroup string) (eventbus.EventBus, error) {
	if env.NatsURL == "" {
		return nil, fmt.Errorf("environment was started without NATS")
	}
	return eventbus.NewEventBus(env.Ctx, eventbus.Config{
		Driver:         eventbus.DriverNATS,
		URL:            env.NatsURL,
		QueueGroup:     queueGroup,
		AckWaitTimeout: 5 * time.Second,
	}, env.Logger)
}

// ResetTables empties every raffle table.
func (env *TestEnvironment) ResetTables(ctx context.Context) error {
	_, err := env.DB.ExecContext(ctx, "TRUNCATE raffle_rounds, raffle_payouts, raffle_balances")
	if err != nil {
		return fmt.Errorf("failed to truncate raffle tables: %w", err)
	}
	return nil
}

// Cleanup closes connections and terminates the containers.
func (env *TestEnvironment) Cleanup() {
	if env.DB != nil {
		_ = env.DB.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if env.NatsContainer != nil {
		_ = env.NatsContainer.Terminate(ctx)
	}
	if env.PgContainer != nil {
		_ = env.PgContainer.Terminate(ctx)
	}
	env.CancelContext()
}
