package rafflehandlers

import (
	"context"
	"fmt"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
)

// HandleEntryRequested records an entry. Rejected entries produce an
// EntryRejected event and are not retried.
func (h *RaffleHandlers) HandleEntryRequested(
	ctx context.Context,
	payload *raffleevents.EntryRequestedPayloadV1,
) ([]handlerwrapper.Result, error) {
	if !h.targets(payload.RaffleID) {
		return h.entryRejected(payload, fmt.Sprintf("unknown raffle %q", payload.RaffleID)), nil
	}

	_, err := h.service.Enter(ctx, payload.Player, payload.Amount)
	if err != nil {
		if raffletypes.IsPrecondition(err) {
			h.logger.InfoContext(ctx, "Entry rejected",
				attr.ExtractCorrelationID(ctx),
				attr.Player(string(payload.Player)),
				attr.Error(err),
			)
			return h.entryRejected(payload, err.Error()), nil
		}
		return nil, err
	}
	return nil, nil
}

func (h *RaffleHandlers) entryRejected(payload *raffleevents.EntryRequestedPayloadV1, reason string) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic: raffleevents.EntryRejectedV1,
		Payload: &raffleevents.EntryRejectedPayloadV1{
			RaffleID: h.raffleID,
			Player:   payload.Player,
			Amount:   payload.Amount,
			Reason:   reason,
		},
	}}
}
