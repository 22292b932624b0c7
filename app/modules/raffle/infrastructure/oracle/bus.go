package raffleoracle

import (
	"context"
	"fmt"
	"log/slog"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// BusCoordinator forwards randomness requests to an external coordinator
// over the event bus. Fulfillments come back on RandomWordsFulfilledV1.
type BusCoordinator struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewBusCoordinator creates a coordinator publishing through publisher.
func NewBusCoordinator(publisher message.Publisher, logger *slog.Logger) *BusCoordinator {
	return &BusCoordinator{publisher: publisher, logger: logger}
}

var _ Coordinator = (*BusCoordinator)(nil)

// RequestRandomWords publishes the request and returns its generated id.
func (c *BusCoordinator) RequestRandomWords(ctx context.Context, req raffletypes.RandomWordsRequest) (raffletypes.RequestID, error) {
	id := raffletypes.RequestID(uuid.NewString())

	msg, err := handlerwrapper.NewMessage(ctx, handlerwrapper.Result{
		Topic: raffleevents.RandomWordsRequestedV1,
		Payload: &raffleevents.RandomWordsRequestedPayloadV1{
			RequestID:            id,
			RaffleID:             req.RaffleID,
			KeyHash:              req.KeyHash,
			SubscriptionID:       req.SubscriptionID,
			MinimumConfirmations: req.MinimumConfirmations,
			CallbackGasLimit:     req.CallbackGasLimit,
			NumWords:             req.NumWords,
		},
	})
	if err != nil {
		return "", err
	}
	if err := c.publisher.Publish(raffleevents.RandomWordsRequestedV1, msg); err != nil {
		return "", fmt.Errorf("failed to publish randomness request: %w", err)
	}

	c.logger.InfoContext(ctx, "Randomness request published",
		attr.ExtractCorrelationID(ctx),
		attr.RequestID(string(id)),
		attr.RaffleID(string(req.RaffleID)),
	)
	return id, nil
}
