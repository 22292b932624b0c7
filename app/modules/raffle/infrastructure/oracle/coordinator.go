package raffleoracle

import (
	"context"
	"errors"
	"math/big"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
)

// ErrNonexistentRequest is returned when fulfilling a request that was never
// issued or was already fulfilled.
var ErrNonexistentRequest = errors.New("nonexistent request")

// Coordinator issues randomness requests. The words arrive later and
// separately through a Consumer.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, req raffletypes.RandomWordsRequest) (raffletypes.RequestID, error)
}

// Consumer receives fulfilled random words.
type Consumer func(ctx context.Context, requestID raffletypes.RequestID, words []*big.Int, proof []byte) error
