package rafflehandlers

import (
	"context"
	"errors"
	"fmt"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
)

// HandleUpkeepRequested performs upkeep on request.
func (h *RaffleHandlers) HandleUpkeepRequested(
	ctx context.Context,
	payload *raffleevents.UpkeepRequestedPayloadV1,
) ([]handlerwrapper.Result, error) {
	if !h.targets(payload.RaffleID) {
		return []handlerwrapper.Result{{
			Topic: raffleevents.UpkeepRejectedV1,
			Payload: &raffleevents.UpkeepRejectedPayloadV1{
				RaffleID: payload.RaffleID,
				Reason:   fmt.Sprintf("unknown raffle %q", payload.RaffleID),
			},
		}}, nil
	}

	_, err := h.service.PerformUpkeep(ctx)
	if err == nil {
		return nil, nil
	}
	if !raffletypes.IsPrecondition(err) {
		return nil, err
	}

	rejected := &raffleevents.UpkeepRejectedPayloadV1{
		RaffleID: h.raffleID,
		Reason:   err.Error(),
	}
	var notNeeded *raffletypes.UpkeepNotNeededError
	if errors.As(err, &notNeeded) {
		rejected.Balance = notNeeded.Balance
		rejected.Players = notNeeded.Players
		rejected.State = notNeeded.State
	}
	return []handlerwrapper.Result{{Topic: raffleevents.UpkeepRejectedV1, Payload: rejected}}, nil
}
