package rafflequeue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
)

// Upkeeper is the part of the raffle service the scheduler drives.
type Upkeeper interface {
	CheckUpkeep(ctx context.Context) (*raffletypes.UpkeepStatus, error)
	PerformUpkeep(ctx context.Context) (raffletypes.RequestID, error)
	RecoverStaleRequest(ctx context.Context) (*raffletypes.RequestID, error)
}

// RunUpkeep is one automation tick: re-issue a stale randomness request,
// then close the round if it is eligible. An ineligible round is not an
// error.
func RunUpkeep(ctx context.Context, svc Upkeeper, logger *slog.Logger) error {
	reissued, err := svc.RecoverStaleRequest(ctx)
	if err != nil {
		return fmt.Errorf("recover stale request: %w", err)
	}
	if reissued != nil {
		logger.InfoContext(ctx, "Stale randomness request replaced", attr.RequestID(string(*reissued)))
		return nil
	}

	status, err := svc.CheckUpkeep(ctx)
	if err != nil {
		return fmt.Errorf("check upkeep: %w", err)
	}
	if !status.Needed {
		logger.DebugContext(ctx, "Upkeep not needed",
			attr.String("state", status.State.String()),
			attr.Int("players", status.Players),
			attr.Int64("balance", int64(status.Balance)),
		)
		return nil
	}

	requestID, err := svc.PerformUpkeep(ctx)
	if err != nil {
		// Another trigger may have closed the round between check and perform.
		if errors.Is(err, raffletypes.ErrUpkeepNotNeeded) {
			return nil
		}
		return fmt.Errorf("perform upkeep: %w", err)
	}
	logger.InfoContext(ctx, "Upkeep performed", attr.RequestID(string(requestID)))
	return nil
}
