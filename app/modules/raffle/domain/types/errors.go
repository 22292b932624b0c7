package raffletypes

import (
	"errors"
	"fmt"
)

// Precondition violations. They are rejected before any state changes and
// are never retried.
var (
	ErrInsufficientPayment = errors.New("raffle: send more to enter raffle")
	ErrRoundNotOpen        = errors.New("raffle: round not open")
	ErrUpkeepNotNeeded     = errors.New("raffle: upkeep not needed")
	ErrUnknownRequestID    = errors.New("raffle: unknown request id")
	ErrIndexOutOfRange     = errors.New("raffle: player index out of range")
	ErrNoPlayers           = errors.New("raffle: no players")
	ErrInvalidRandomWords  = errors.New("raffle: no random words delivered")
	ErrInvalidEntrant      = errors.New("raffle: empty player identity")
	ErrEscrowLimit         = errors.New("raffle: entry would exceed the escrow limit")
)

// ErrTransferFailed reports an external payout failure. The resolution that
// triggered it is rolled back.
var ErrTransferFailed = errors.New("raffle: transfer failed")

// UpkeepNotNeededError carries the values that made the round ineligible.
type UpkeepNotNeededError struct {
	Balance Amount
	Players int
	State   RaffleState
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%s (balance=%d, players=%d, state=%s)", ErrUpkeepNotNeeded, e.Balance, e.Players, e.State)
}

func (e *UpkeepNotNeededError) Unwrap() error { return ErrUpkeepNotNeeded }

// IsPrecondition reports whether err is a business rule rejection as opposed
// to an infrastructure failure.
func IsPrecondition(err error) bool {
	switch {
	case errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, ErrRoundNotOpen),
		errors.Is(err, ErrUpkeepNotNeeded),
		errors.Is(err, ErrUnknownRequestID),
		errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrNoPlayers),
		errors.Is(err, ErrInvalidRandomWords),
		errors.Is(err, ErrInvalidEntrant),
		errors.Is(err, ErrEscrowLimit):
		return true
	}
	return false
}
