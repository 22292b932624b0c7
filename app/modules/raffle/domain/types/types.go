package raffletypes

import (
	"fmt"
	"math/big"
	"time"
)

// RaffleID identifies the single recurring raffle a service instance manages.
type RaffleID string

// PlayerID is the opaque identity of a participant.
type PlayerID string

// Amount is a monetary value in the smallest indivisible unit.
type Amount int64

// RequestID correlates an outbound randomness request with its callback.
type RequestID string

// RaffleState is the state of the current round.
type RaffleState int

const (
	// StateOpen accepts entries.
	StateOpen RaffleState = iota
	// StateCalculating waits for the oracle callback; entries are rejected.
	StateCalculating
)

func (s RaffleState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ParseRaffleState accepts either the name or the numeric form of a state.
func ParseRaffleState(s string) (RaffleState, error) {
	switch s {
	case "OPEN", "0":
		return StateOpen, nil
	case "CALCULATING", "1":
		return StateCalculating, nil
	default:
		return 0, fmt.Errorf("unknown raffle state %q", s)
	}
}

// RandomWordsRequest carries the subscription parameters sent to the VRF oracle.
type RandomWordsRequest struct {
	RaffleID             RaffleID `json:"raffle_id"`
	KeyHash              string   `json:"key_hash"`
	SubscriptionID       uint64   `json:"subscription_id"`
	MinimumConfirmations uint16   `json:"minimum_confirmations"`
	CallbackGasLimit     uint32   `json:"callback_gas_limit"`
	NumWords             uint32   `json:"num_words"`
}

// UpkeepStatus is the read-only result of an eligibility check.
type UpkeepStatus struct {
	Needed   bool          `json:"upkeep_needed"`
	State    RaffleState   `json:"state"`
	Balance  Amount        `json:"balance"`
	Players  int           `json:"players"`
	Elapsed  time.Duration `json:"elapsed"`
	Interval time.Duration `json:"interval"`
}

// RaffleInfo is a snapshot of every queryable field of the raffle.
type RaffleInfo struct {
	RaffleID         RaffleID    `json:"raffle_id"`
	State            RaffleState `json:"state"`
	EntranceFee      Amount      `json:"entrance_fee"`
	Interval         string      `json:"interval"`
	LastTimestamp    time.Time   `json:"last_timestamp"`
	NumberOfPlayers  int         `json:"number_of_players"`
	Balance          Amount      `json:"balance"`
	RecentWinner     *PlayerID   `json:"recent_winner,omitempty"`
	PendingRequestID *RequestID  `json:"pending_request_id,omitempty"`
	PendingSince     *time.Time  `json:"pending_since,omitempty"`
}

// EntryReceipt describes an accepted entry.
type EntryReceipt struct {
	Player  PlayerID `json:"player"`
	Amount  Amount   `json:"amount"`
	Index   int      `json:"index"`
	Balance Amount   `json:"balance"`
}

// Resolution describes a completed round.
type Resolution struct {
	RequestID   RequestID `json:"request_id"`
	Winner      PlayerID  `json:"winner"`
	WinnerIndex int       `json:"winner_index"`
	Payout      Amount    `json:"payout"`
	ResolvedAt  time.Time `json:"resolved_at"`
	RandomWord  *big.Int  `json:"random_word"`
}
