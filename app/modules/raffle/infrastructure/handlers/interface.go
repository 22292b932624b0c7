package rafflehandlers

import (
	"context"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
)

// Handlers defines the interface for raffle event handlers. Success events
// are published by the service after commit; handlers only return the
// rejection events of precondition failures.
type Handlers interface {
	// HandleEntryRequested enters a player from a bus command.
	HandleEntryRequested(ctx context.Context, payload *raffleevents.EntryRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleUpkeepRequested closes the round if it is eligible.
	HandleUpkeepRequested(ctx context.Context, payload *raffleevents.UpkeepRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleRandomWordsFulfilled resolves the round from an oracle callback.
	HandleRandomWordsFulfilled(ctx context.Context, payload *raffleevents.RandomWordsFulfilledPayloadV1) ([]handlerwrapper.Result, error)
}
