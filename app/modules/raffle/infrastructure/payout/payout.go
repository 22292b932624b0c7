package rafflepayout

import (
	"context"
	"errors"
	"math/big"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/uptrace/bun"
)

// ErrPayoutNotFound is returned by Lookup when no transfer was recorded for
// the request.
var ErrPayoutNotFound = errors.New("payout not found")

// Transfer moves the escrow of a resolved round to its winner. The draw
// fields are stored with the payout so the resolution can be read back.
type Transfer struct {
	RaffleID    raffletypes.RaffleID
	RequestID   raffletypes.RequestID
	To          raffletypes.PlayerID
	Amount      raffletypes.Amount
	WinnerIndex int
	RandomWord  *big.Int
	ResolvedAt  time.Time
}

// Resolution rebuilds the round resolution this transfer paid out.
func (t Transfer) Resolution() raffletypes.Resolution {
	res := raffletypes.Resolution{
		RequestID:   t.RequestID,
		Winner:      t.To,
		WinnerIndex: t.WinnerIndex,
		Payout:      t.Amount,
		ResolvedAt:  t.ResolvedAt,
	}
	if t.RandomWord != nil {
		res.RandomWord = new(big.Int).Set(t.RandomWord)
	}
	return res
}

// Executor pays winners. Transfer is all-or-nothing and reports failures
// wrapping raffletypes.ErrTransferFailed.
type Executor interface {
	Transfer(ctx context.Context, db bun.IDB, t Transfer) error
	BalanceOf(ctx context.Context, db bun.IDB, player raffletypes.PlayerID) (raffletypes.Amount, error)
	Lookup(ctx context.Context, db bun.IDB, raffleID raffletypes.RaffleID, requestID raffletypes.RequestID) (Transfer, error)
}
