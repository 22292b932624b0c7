package raffleevents

import (
	"math/big"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
)

// Commands consumed by the raffle module.
const (
	EntryRequestedV1  = "raffle.entry.requested.v1"
	UpkeepRequestedV1 = "raffle.upkeep.requested.v1"
)

// Events produced by the raffle module.
const (
	EntryRecordedV1       = "raffle.entry.recorded.v1"
	EntryRejectedV1       = "raffle.entry.rejected.v1"
	RandomnessRequestedV1 = "raffle.randomness.requested.v1"
	UpkeepRejectedV1      = "raffle.upkeep.rejected.v1"
	WinnerPickedV1        = "raffle.winner.picked.v1"
	FulfillmentRejectedV1 = "raffle.fulfillment.rejected.v1"
	RandomnessReissuedV1  = "raffle.randomness.reissued.v1"
)

// Oracle boundary. Requests go out on RandomWordsRequestedV1 and the
// coordinator answers on RandomWordsFulfilledV1.
const (
	RandomWordsRequestedV1 = "vrf.random_words.requested.v1"
	RandomWordsFulfilledV1 = "vrf.random_words.fulfilled.v1"
)

// --- Commands ---

// EntryRequestedPayloadV1 asks to enter the current round.
type EntryRequestedPayloadV1 struct {
	RaffleID raffletypes.RaffleID `json:"raffle_id"`
	Player   raffletypes.PlayerID `json:"player"`
	Amount   raffletypes.Amount   `json:"amount"`
}

// UpkeepRequestedPayloadV1 asks the raffle to close the round if eligible.
type UpkeepRequestedPayloadV1 struct {
	RaffleID raffletypes.RaffleID `json:"raffle_id"`
}

// --- Events ---

// EntryRecordedPayloadV1 is published for every accepted entry.
type EntryRecordedPayloadV1 struct {
	RaffleID raffletypes.RaffleID `json:"raffle_id"`
	Player   raffletypes.PlayerID `json:"player"`
	Amount   raffletypes.Amount   `json:"amount"`
	Index    int                  `json:"index"`
}

// EntryRejectedPayloadV1 reports a refused entry.
type EntryRejectedPayloadV1 struct {
	RaffleID raffletypes.RaffleID `json:"raffle_id"`
	Player   raffletypes.PlayerID `json:"player"`
	Amount   raffletypes.Amount   `json:"amount"`
	Reason   string               `json:"reason"`
}

// RandomnessRequestedPayloadV1 is published when the round closes.
type RandomnessRequestedPayloadV1 struct {
	RaffleID  raffletypes.RaffleID  `json:"raffle_id"`
	RequestID raffletypes.RequestID `json:"request_id"`
}

// RandomnessReissuedPayloadV1 is published when a stale request is replaced.
type RandomnessReissuedPayloadV1 struct {
	RaffleID          raffletypes.RaffleID  `json:"raffle_id"`
	RequestID         raffletypes.RequestID `json:"request_id"`
	PreviousRequestID raffletypes.RequestID `json:"previous_request_id"`
}

// UpkeepRejectedPayloadV1 reports why a requested upkeep did not run.
type UpkeepRejectedPayloadV1 struct {
	RaffleID raffletypes.RaffleID    `json:"raffle_id"`
	Balance  raffletypes.Amount      `json:"balance"`
	Players  int                     `json:"players"`
	State    raffletypes.RaffleState `json:"state"`
	Reason   string                  `json:"reason"`
}

// WinnerPickedPayloadV1 is published after the payout succeeded.
type WinnerPickedPayloadV1 struct {
	RaffleID    raffletypes.RaffleID  `json:"raffle_id"`
	RequestID   raffletypes.RequestID `json:"request_id"`
	Winner      raffletypes.PlayerID  `json:"winner"`
	WinnerIndex int                   `json:"winner_index"`
	Amount      raffletypes.Amount    `json:"amount"`
	ResolvedAt  time.Time             `json:"resolved_at"`
}

// FulfillmentRejectedPayloadV1 reports a callback that could not resolve the round.
type FulfillmentRejectedPayloadV1 struct {
	RaffleID  raffletypes.RaffleID  `json:"raffle_id"`
	RequestID raffletypes.RequestID `json:"request_id"`
	Reason    string                `json:"reason"`
}

// --- Oracle ---

// RandomWordsRequestedPayloadV1 is the outbound randomness request.
type RandomWordsRequestedPayloadV1 struct {
	RequestID            raffletypes.RequestID `json:"request_id"`
	RaffleID             raffletypes.RaffleID  `json:"raffle_id"`
	KeyHash              string                `json:"key_hash"`
	SubscriptionID       uint64                `json:"subscription_id"`
	MinimumConfirmations uint16                `json:"minimum_confirmations"`
	CallbackGasLimit     uint32                `json:"callback_gas_limit"`
	NumWords             uint32                `json:"num_words"`
}

// RandomWordsFulfilledPayloadV1 is the inbound oracle callback. Proof is
// optional and only checked when a verification key is configured.
type RandomWordsFulfilledPayloadV1 struct {
	RequestID   raffletypes.RequestID `json:"request_id"`
	RandomWords []*big.Int            `json:"random_words"`
	Proof       []byte                `json:"proof,omitempty"`
}
