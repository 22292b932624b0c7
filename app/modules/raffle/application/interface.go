package raffleservice

import (
	"context"
	"math/big"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
)

// Service is the raffle round controller. Mutating operations are
// serialized; queries never change state.
type Service interface {
	// InitializeRaffle creates the round on first start and loads it afterwards.
	InitializeRaffle(ctx context.Context) (*raffletypes.RaffleInfo, error)

	// Enter records a paid entry for player.
	Enter(ctx context.Context, player raffletypes.PlayerID, amount raffletypes.Amount) (*raffletypes.EntryReceipt, error)

	// CheckUpkeep evaluates whether the round may be closed now.
	CheckUpkeep(ctx context.Context) (*raffletypes.UpkeepStatus, error)

	// PerformUpkeep closes the round and requests randomness.
	PerformUpkeep(ctx context.Context) (raffletypes.RequestID, error)

	// FulfillRandomWords resolves the round with the delivered words.
	FulfillRandomWords(ctx context.Context, requestID raffletypes.RequestID, words []*big.Int, proof []byte) (*raffletypes.Resolution, error)

	// RecoverStaleRequest replaces a request that has been outstanding
	// longer than the configured timeout. It returns nil when nothing was
	// replaced.
	RecoverStaleRequest(ctx context.Context) (*raffletypes.RequestID, error)

	// GetRaffle returns a snapshot of the round.
	GetRaffle(ctx context.Context) (*raffletypes.RaffleInfo, error)

	// GetPlayer returns the player at index.
	GetPlayer(ctx context.Context, index int) (raffletypes.PlayerID, error)

	// GetWinnings returns the total paid out to player.
	GetWinnings(ctx context.Context, player raffletypes.PlayerID) (raffletypes.Amount, error)

	// GetResolution returns the resolution of a completed request.
	GetResolution(ctx context.Context, requestID raffletypes.RequestID) (*raffletypes.Resolution, error)
}

// Settings holds the round and oracle parameters.
type Settings struct {
	RaffleID    raffletypes.RaffleID
	EntranceFee raffletypes.Amount
	Interval    time.Duration

	KeyHash              string
	SubscriptionID       uint64
	MinimumConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32

	// RequestTimeout enables stale request recovery when positive.
	RequestTimeout time.Duration
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }
