package raffledb

import (
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/uptrace/bun"
)

// Round is the persisted form of a raffle round. One row per raffle.
type Round struct {
	bun.BaseModel    `bun:"table:raffle_rounds,alias:rr"`
	ID               raffletypes.RaffleID    `bun:"id,pk"`
	State            raffletypes.RaffleState `bun:"state,notnull"`
	EntranceFee      raffletypes.Amount      `bun:"entrance_fee,notnull"`
	IntervalMS       int64                   `bun:"interval_ms,notnull"`
	LastTimestamp    time.Time               `bun:"last_timestamp,notnull"`
	Players          []raffletypes.PlayerID  `bun:"players,type:jsonb,notnull"`
	Escrow           raffletypes.Amount      `bun:"escrow,notnull"`
	PendingRequestID *raffletypes.RequestID  `bun:"pending_request_id"`
	PendingSince     *time.Time              `bun:"pending_since"`
	RecentWinner     *raffletypes.PlayerID   `bun:"recent_winner"`
	CreatedAt        time.Time               `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time               `bun:",nullzero,notnull,default:current_timestamp"`
}

func fromDomain(r *raffletypes.Round) *Round {
	return &Round{
		ID:               r.ID,
		State:            r.State,
		EntranceFee:      r.EntranceFee,
		IntervalMS:       r.Interval.Milliseconds(),
		LastTimestamp:    r.LastTimestamp,
		Players:          r.Ledger.Players(),
		Escrow:           r.Ledger.Balance(),
		PendingRequestID: r.PendingRequestID,
		PendingSince:     r.PendingSince,
		RecentWinner:     r.RecentWinner,
	}
}

func (m *Round) toDomain() *raffletypes.Round {
	return &raffletypes.Round{
		ID:               m.ID,
		State:            m.State,
		EntranceFee:      m.EntranceFee,
		Interval:         time.Duration(m.IntervalMS) * time.Millisecond,
		LastTimestamp:    m.LastTimestamp.UTC(),
		Ledger:           raffletypes.RestoreEntryLedger(m.Players, m.Escrow),
		PendingRequestID: m.PendingRequestID,
		PendingSince:     m.PendingSince,
		RecentWinner:     m.RecentWinner,
	}
}
