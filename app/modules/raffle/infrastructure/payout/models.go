package rafflepayout

import (
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Payout records one completed transfer.
type Payout struct {
	bun.BaseModel `bun:"table:raffle_payouts,alias:rp"`
	ID            uuid.UUID             `bun:"id,pk,type:uuid"`
	RaffleID      raffletypes.RaffleID  `bun:"raffle_id,notnull"`
	RequestID     raffletypes.RequestID `bun:"request_id,notnull"`
	Winner        raffletypes.PlayerID  `bun:"winner,notnull"`
	Amount        raffletypes.Amount    `bun:"amount,notnull"`
	WinnerIndex   int                   `bun:"winner_index,notnull"`
	RandomWord    string                `bun:"random_word,notnull"`
	CreatedAt     time.Time             `bun:",nullzero,notnull,default:current_timestamp"`
}

// Balance is the credited total of a player.
type Balance struct {
	bun.BaseModel `bun:"table:raffle_balances,alias:rb"`
	Player        raffletypes.PlayerID `bun:"player,pk"`
	Balance       raffletypes.Amount   `bun:"balance,notnull"`
	UpdatedAt     time.Time            `bun:",nullzero,notnull,default:current_timestamp"`
}
