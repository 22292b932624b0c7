package raffletypes

import "time"

// IsUpkeepEligible reports whether a round may be closed. Every condition
// must hold: the round is open, the interval has elapsed, and there is at
// least one player and a positive balance.
func IsUpkeepEligible(state RaffleState, balance Amount, playerCount int, elapsed, interval time.Duration) bool {
	isOpen := state == StateOpen
	timePassed := elapsed >= interval
	hasPlayers := playerCount > 0
	hasBalance := balance > 0
	return isOpen && timePassed && hasPlayers && hasBalance
}
