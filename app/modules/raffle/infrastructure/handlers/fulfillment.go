package rafflehandlers

import (
	"context"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
)

// HandleRandomWordsFulfilled resolves the round. Stale, duplicate or
// malformed callbacks produce FulfillmentRejected; a failed payout returns
// the error so the callback is redelivered.
func (h *RaffleHandlers) HandleRandomWordsFulfilled(
	ctx context.Context,
	payload *raffleevents.RandomWordsFulfilledPayloadV1,
) ([]handlerwrapper.Result, error) {
	_, err := h.service.FulfillRandomWords(ctx, payload.RequestID, payload.RandomWords, payload.Proof)
	if err == nil {
		return nil, nil
	}
	if !raffletypes.IsPrecondition(err) {
		h.logger.ErrorContext(ctx, "Fulfillment failed, awaiting redelivery",
			attr.ExtractCorrelationID(ctx),
			attr.RequestID(string(payload.RequestID)),
			attr.Error(err),
		)
		return nil, err
	}

	h.logger.WarnContext(ctx, "Fulfillment rejected",
		attr.ExtractCorrelationID(ctx),
		attr.RequestID(string(payload.RequestID)),
		attr.Error(err),
	)
	return []handlerwrapper.Result{{
		Topic: raffleevents.FulfillmentRejectedV1,
		Payload: &raffleevents.FulfillmentRejectedPayloadV1{
			RaffleID:  h.raffleID,
			RequestID: payload.RequestID,
			Reason:    err.Error(),
		},
	}}, nil
}
