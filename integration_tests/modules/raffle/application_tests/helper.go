//go:build integration

package raffleintegrationtests

import (
	"context"
	"math/big"
	"testing"
	"time"

	raffleservice "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/application"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	raffleoracle "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/oracle"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	"github.com/Black-And-White-Club/raffle-bot/integration_tests/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

const entranceFee = raffletypes.Amount(100)

// TestDeps is a Postgres backed service with a local coordinator.
type TestDeps struct {
	Ctx         context.Context
	Service     *raffleservice.RaffleService
	Repo        raffledb.Repository
	Coordinator *raffleoracle.LocalCoordinator
	Clock       *testutils.Clock
}

func defaultSettings() raffleservice.Settings {
	return raffleservice.Settings{
		RaffleID:         "default",
		EntranceFee:      entranceFee,
		Interval:         30 * time.Second,
		KeyHash:          "0xabc",
		NumWords:         1,
		CallbackGasLimit: 500_000,
	}
}

// SetupTestRaffleService truncates the tables and initializes a fresh round.
func SetupTestRaffleService(t *testing.T) TestDeps {
	t.Helper()
	ctx := testEnv.Ctx
	require.NoError(t, testEnv.ResetTables(ctx))

	clock := testutils.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	deps := newDeps(t, clock)

	_, err := deps.Service.InitializeRaffle(ctx)
	require.NoError(t, err)
	return deps
}

// newDeps builds a service over the shared database without resetting it.
func newDeps(t *testing.T, clock *testutils.Clock) TestDeps {
	t.Helper()
	repo := raffledb.NewRepository(testEnv.DB)
	coordinator := raffleoracle.NewLocalCoordinator(testEnv.Logger,
		raffleoracle.WithRequestIDPrefix(uuid.NewString()[:8]),
	)
	t.Cleanup(func() { _ = coordinator.Close() })

	svc := raffleservice.NewRaffleService(
		repo,
		rafflepayout.NewLedgerExecutor(testEnv.DB),
		coordinator,
		nil,
		testEnv.Logger,
		nil,
		noop.NewTracerProvider().Tracer("test"),
		testEnv.DB,
		defaultSettings(),
		raffleservice.WithClock(clock),
		raffleservice.WithVerifier(coordinator.Verifier()),
	)
	coordinator.SetConsumer(func(ctx context.Context, id raffletypes.RequestID, words []*big.Int, proof []byte) error {
		_, err := svc.FulfillRandomWords(ctx, id, words, proof)
		return err
	})

	return TestDeps{
		Ctx:         testEnv.Ctx,
		Service:     svc,
		Repo:        repo,
		Coordinator: coordinator,
		Clock:       clock,
	}
}

func enterAll(t *testing.T, deps TestDeps, players ...raffletypes.PlayerID) {
	t.Helper()
	for _, p := range players {
		_, err := deps.Service.Enter(deps.Ctx, p, entranceFee)
		require.NoError(t, err)
	}
}

// SetupClock returns a clock at a fixed start.
func SetupClock() *testutils.Clock {
	return testutils.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}
