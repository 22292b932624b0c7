package raffledb

import (
	"context"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/uptrace/bun"
)

// Repository defines the contract for raffle round persistence.
type Repository interface {
	// GetRound retrieves the round of a raffle.
	GetRound(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error)

	// GetRoundForUpdate retrieves the round and locks its row until the
	// surrounding transaction ends.
	GetRoundForUpdate(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error)

	// CreateRound inserts a new round. It returns ErrAlreadyExists when the
	// raffle already has one.
	CreateRound(ctx context.Context, db bun.IDB, round *raffletypes.Round) error

	// SaveRound persists every mutable field of the round.
	SaveRound(ctx context.Context, db bun.IDB, round *raffletypes.Round) error
}
