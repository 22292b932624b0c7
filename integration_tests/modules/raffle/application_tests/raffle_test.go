//go:build integration

package raffleintegrationtests

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	raffleservice "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/application"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	raffleoracle "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/oracle"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestFullRoundPersistsAndPays(t *testing.T) {
	deps := SetupTestRaffleService(t)
	players := []raffletypes.PlayerID{"alice", "bob", "carol"}
	enterAll(t, deps, players...)

	deps.Clock.Advance(31 * time.Second)
	status, err := deps.Service.CheckUpkeep(deps.Ctx)
	require.NoError(t, err)
	require.True(t, status.Needed)

	requestID, err := deps.Service.PerformUpkeep(deps.Ctx)
	require.NoError(t, err)

	stored, err := deps.Repo.GetRound(deps.Ctx, testEnv.DB, "default")
	require.NoError(t, err)
	assert.Equal(t, raffletypes.StateCalculating, stored.State)
	require.NotNil(t, stored.PendingRequestID)
	assert.Equal(t, requestID, *stored.PendingRequestID)

	require.NoError(t, deps.Coordinator.FulfillRandomWords(deps.Ctx, requestID))

	resolution, err := deps.Service.GetResolution(deps.Ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, entranceFee*3, resolution.Payout)
	assert.Contains(t, players, resolution.Winner)
	want := new(big.Int).Mod(resolution.RandomWord, big.NewInt(3)).Int64()
	assert.Equal(t, int(want), resolution.WinnerIndex)

	info, err := deps.Service.GetRaffle(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, raffletypes.StateOpen, info.State)
	assert.Equal(t, 0, info.NumberOfPlayers)
	assert.Equal(t, raffletypes.Amount(0), info.Balance)
	require.NotNil(t, info.RecentWinner)
	assert.Equal(t, resolution.Winner, *info.RecentWinner)
	assert.Nil(t, info.PendingRequestID)

	winnings, err := deps.Service.GetWinnings(deps.Ctx, resolution.Winner)
	require.NoError(t, err)
	assert.Equal(t, entranceFee*3, winnings)

	var payouts []rafflepayout.Payout
	require.NoError(t, testEnv.DB.NewSelect().Model(&payouts).Scan(deps.Ctx))
	require.Len(t, payouts, 1)
	assert.Equal(t, requestID, payouts[0].RequestID)
	assert.Equal(t, resolution.Winner, payouts[0].Winner)
}

func TestEntriesRejectedWhileCalculating(t *testing.T) {
	deps := SetupTestRaffleService(t)
	enterAll(t, deps, "alice")
	deps.Clock.Advance(31 * time.Second)
	_, err := deps.Service.PerformUpkeep(deps.Ctx)
	require.NoError(t, err)

	_, err = deps.Service.Enter(deps.Ctx, "bob", entranceFee)
	assert.ErrorIs(t, err, raffletypes.ErrRoundNotOpen)

	info, err := deps.Service.GetRaffle(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.NumberOfPlayers)
	assert.Equal(t, entranceFee, info.Balance)
}

// Two services over one database serialize on the round row.
func TestConcurrentEntriesAcrossInstances(t *testing.T) {
	deps := SetupTestRaffleService(t)
	other := newDeps(t, deps.Clock)

	const perInstance = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*perInstance)
	for _, svc := range []*raffleservice.RaffleService{deps.Service, other.Service} {
		for i := 0; i < perInstance; i++ {
			wg.Add(1)
			go func(svc *raffleservice.RaffleService) {
				defer wg.Done()
				_, err := svc.Enter(context.Background(), raffletypes.PlayerID(gofakeit.UUID()), entranceFee)
				errs <- err
			}(svc)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	info, err := deps.Service.GetRaffle(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*perInstance, info.NumberOfPlayers)
	assert.Equal(t, entranceFee*2*perInstance, info.Balance)

	seen := make(map[raffletypes.PlayerID]bool)
	for i := 0; i < info.NumberOfPlayers; i++ {
		p, err := deps.Service.GetPlayer(deps.Ctx, i)
		require.NoError(t, err)
		assert.False(t, seen[p], "player %s stored twice", p)
		seen[p] = true
	}
}

// A pending request survives a restart and resolves through a new instance.
func TestPendingRequestSurvivesRestart(t *testing.T) {
	deps := SetupTestRaffleService(t)
	enterAll(t, deps, "alice", "bob")
	deps.Clock.Advance(31 * time.Second)
	requestID, err := deps.Service.PerformUpkeep(deps.Ctx)
	require.NoError(t, err)

	restarted := raffleservice.NewRaffleService(
		raffledb.NewRepository(testEnv.DB),
		rafflepayout.NewLedgerExecutor(testEnv.DB),
		raffleoracle.NewLocalCoordinator(testEnv.Logger),
		nil,
		testEnv.Logger,
		nil,
		noop.NewTracerProvider().Tracer("test"),
		testEnv.DB,
		defaultSettings(),
	)
	info, err := restarted.InitializeRaffle(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, raffletypes.StateCalculating, info.State)
	require.NotNil(t, info.PendingRequestID)
	assert.Equal(t, requestID, *info.PendingRequestID)

	resolution, err := restarted.FulfillRandomWords(deps.Ctx, requestID, []*big.Int{big.NewInt(5)}, nil)
	require.NoError(t, err)
	assert.Equal(t, raffletypes.PlayerID("bob"), resolution.Winner)

	_, err = deps.Service.FulfillRandomWords(deps.Ctx, requestID, []*big.Int{big.NewInt(4)}, nil)
	assert.ErrorIs(t, err, raffletypes.ErrUnknownRequestID)
}

// Two processes resolve consecutive rounds over one database.
func TestRoundsResolveAcrossInstances(t *testing.T) {
	first := SetupTestRaffleService(t)
	enterAll(t, first, "alice", "bob")
	first.Clock.Advance(31 * time.Second)
	firstID, err := first.Service.PerformUpkeep(first.Ctx)
	require.NoError(t, err)
	require.NoError(t, first.Coordinator.FulfillRandomWords(first.Ctx, firstID))

	second := newDeps(t, first.Clock)
	_, err = second.Service.InitializeRaffle(second.Ctx)
	require.NoError(t, err)
	enterAll(t, second, "carol")
	second.Clock.Advance(31 * time.Second)
	secondID, err := second.Service.PerformUpkeep(second.Ctx)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)
	require.NoError(t, second.Coordinator.FulfillRandomWords(second.Ctx, secondID))

	var count int
	require.NoError(t, testEnv.DB.NewSelect().TableExpr("raffle_payouts").ColumnExpr("count(*)").Scan(second.Ctx, &count))
	assert.Equal(t, 2, count)

	res, err := second.Service.GetResolution(second.Ctx, firstID)
	require.NoError(t, err)
	assert.Contains(t, []raffletypes.PlayerID{"alice", "bob"}, res.Winner)
	assert.Equal(t, entranceFee*2, res.Payout)
}

// A failed payout rolls back with the round still calculating.
func TestPayoutFailureKeepsRoundCalculating(t *testing.T) {
	deps := SetupTestRaffleService(t)
	enterAll(t, deps, "alice")
	deps.Clock.Advance(31 * time.Second)
	requestID, err := deps.Service.PerformUpkeep(deps.Ctx)
	require.NoError(t, err)

	_, err = testEnv.DB.ExecContext(deps.Ctx, "ALTER TABLE raffle_balances ADD CONSTRAINT no_credit CHECK (balance < 0)")
	require.NoError(t, err)

	err = deps.Coordinator.FulfillRandomWords(deps.Ctx, requestID)
	require.Error(t, err)
	assert.ErrorIs(t, err, raffletypes.ErrTransferFailed)

	info, err := deps.Service.GetRaffle(deps.Ctx)
	require.NoError(t, err)
	assert.Equal(t, raffletypes.StateCalculating, info.State)
	assert.Equal(t, entranceFee, info.Balance)

	var count int
	require.NoError(t, testEnv.DB.NewSelect().TableExpr("raffle_payouts").ColumnExpr("count(*)").Scan(deps.Ctx, &count))
	assert.Equal(t, 0, count)

	_, err = testEnv.DB.ExecContext(deps.Ctx, "ALTER TABLE raffle_balances DROP CONSTRAINT no_credit")
	require.NoError(t, err)

	require.NoError(t, deps.Coordinator.FulfillRandomWords(deps.Ctx, requestID))
	winnings, err := deps.Service.GetWinnings(deps.Ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entranceFee, winnings)
}

func TestStaleRequestIsReissued(t *testing.T) {
	ctx := testEnv.Ctx
	require.NoError(t, testEnv.ResetTables(ctx))

	settings := defaultSettings()
	settings.RequestTimeout = time.Minute
	clock := SetupClock()
	coordinator := raffleoracle.NewLocalCoordinator(testEnv.Logger)
	t.Cleanup(func() { _ = coordinator.Close() })

	svc := raffleservice.NewRaffleService(
		raffledb.NewRepository(testEnv.DB),
		rafflepayout.NewLedgerExecutor(testEnv.DB),
		coordinator,
		nil,
		testEnv.Logger,
		nil,
		noop.NewTracerProvider().Tracer("test"),
		testEnv.DB,
		settings,
		raffleservice.WithClock(clock),
	)
	_, err := svc.InitializeRaffle(ctx)
	require.NoError(t, err)
	_, err = svc.Enter(ctx, "alice", entranceFee)
	require.NoError(t, err)
	clock.Advance(31 * time.Second)
	first, err := svc.PerformUpkeep(ctx)
	require.NoError(t, err)

	reissued, err := svc.RecoverStaleRequest(ctx)
	require.NoError(t, err)
	assert.Nil(t, reissued)

	clock.Advance(time.Minute)
	reissued, err = svc.RecoverStaleRequest(ctx)
	require.NoError(t, err)
	require.NotNil(t, reissued)
	assert.NotEqual(t, first, *reissued)

	info, err := svc.GetRaffle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.NumberOfPlayers)
	assert.Equal(t, *reissued, *info.PendingRequestID)

	_, err = svc.FulfillRandomWords(ctx, first, []*big.Int{big.NewInt(1)}, nil)
	assert.ErrorIs(t, err, raffletypes.ErrUnknownRequestID)
}
