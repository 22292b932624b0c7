package raffletypes

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Round is the unit of lottery execution. A raffle owns exactly one Round
// which is reset and reopened after every resolution.
type Round struct {
	ID               RaffleID
	State            RaffleState
	EntranceFee      Amount
	Interval         time.Duration
	LastTimestamp    time.Time
	Ledger           EntryLedger
	PendingRequestID *RequestID
	PendingSince     *time.Time
	RecentWinner     *PlayerID
}

// NewRound creates an open, empty round whose interval starts at now.
func NewRound(id RaffleID, entranceFee Amount, interval time.Duration, now time.Time) (*Round, error) {
	if id == "" {
		return nil, errors.New("raffle id must not be empty")
	}
	if entranceFee <= 0 {
		return nil, fmt.Errorf("entrance fee must be positive, got %d", entranceFee)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return &Round{
		ID:            id,
		State:         StateOpen,
		EntranceFee:   entranceFee,
		Interval:      interval,
		LastTimestamp: now.UTC(),
		Ledger:        RestoreEntryLedger(nil, 0),
	}, nil
}

// Enter records a paid entry.
func (r *Round) Enter(player PlayerID, amount Amount) (EntryReceipt, error) {
	if player == "" {
		return EntryReceipt{}, ErrInvalidEntrant
	}
	if amount < r.EntranceFee {
		return EntryReceipt{}, ErrInsufficientPayment
	}
	if r.State != StateOpen {
		return EntryReceipt{}, ErrRoundNotOpen
	}
	if !r.Ledger.fits(amount) {
		return EntryReceipt{}, ErrEscrowLimit
	}
	idx := r.Ledger.record(player, amount)
	return EntryReceipt{
		Player:  player,
		Amount:  amount,
		Index:   idx,
		Balance: r.Ledger.Balance(),
	}, nil
}

// PlayerAt returns the participant at index.
func (r *Round) PlayerAt(index int) (PlayerID, error) {
	return r.Ledger.PlayerAt(index)
}

// CheckUpkeep evaluates eligibility at now without mutating the round.
func (r *Round) CheckUpkeep(now time.Time) UpkeepStatus {
	elapsed := now.Sub(r.LastTimestamp)
	return UpkeepStatus{
		Needed:   IsUpkeepEligible(r.State, r.Ledger.Balance(), r.Ledger.Count(), elapsed, r.Interval),
		State:    r.State,
		Balance:  r.Ledger.Balance(),
		Players:  r.Ledger.Count(),
		Elapsed:  elapsed,
		Interval: r.Interval,
	}
}

// RequireUpkeep returns an *UpkeepNotNeededError unless the round is eligible at now.
func (r *Round) RequireUpkeep(now time.Time) error {
	status := r.CheckUpkeep(now)
	if !status.Needed {
		return &UpkeepNotNeededError{Balance: status.Balance, Players: status.Players, State: status.State}
	}
	return nil
}

// BeginCalculating closes the round and records the outstanding request.
func (r *Round) BeginCalculating(requestID RequestID, now time.Time) error {
	if r.State != StateOpen {
		return ErrRoundNotOpen
	}
	r.State = StateCalculating
	r.setPending(requestID, now)
	return nil
}

// ReplacePendingRequest swaps the outstanding request for a new one. The
// previous id can no longer resolve the round.
func (r *Round) ReplacePendingRequest(requestID RequestID, now time.Time) error {
	if r.State != StateCalculating {
		return fmt.Errorf("cannot replace request while %s", r.State)
	}
	r.setPending(requestID, now)
	return nil
}

func (r *Round) setPending(requestID RequestID, now time.Time) {
	id := requestID
	since := now.UTC()
	r.PendingRequestID = &id
	r.PendingSince = &since
}

// IsStale reports whether the outstanding request is older than timeout.
// A non-positive timeout disables staleness.
func (r *Round) IsStale(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 || r.State != StateCalculating || r.PendingSince == nil {
		return false
	}
	return now.Sub(*r.PendingSince) >= timeout
}

// PickWinner maps the first random word onto the current players. It does
// not change the round.
func (r *Round) PickWinner(requestID RequestID, randomWords []*big.Int) (int, PlayerID, error) {
	if r.PendingRequestID == nil || *r.PendingRequestID != requestID {
		return 0, "", ErrUnknownRequestID
	}
	if len(randomWords) == 0 || randomWords[0] == nil || randomWords[0].Sign() < 0 {
		return 0, "", ErrInvalidRandomWords
	}
	count := r.Ledger.Count()
	if count == 0 {
		return 0, "", ErrNoPlayers
	}
	idx := new(big.Int).Mod(randomWords[0], big.NewInt(int64(count))).Int64()
	winner, err := r.Ledger.PlayerAt(int(idx))
	if err != nil {
		return 0, "", err
	}
	return int(idx), winner, nil
}

// Reopen completes a resolution after the payout has succeeded.
func (r *Round) Reopen(winner PlayerID, now time.Time) {
	w := winner
	r.RecentWinner = &w
	r.State = StateOpen
	r.LastTimestamp = now.UTC()
	r.PendingRequestID = nil
	r.PendingSince = nil
	r.Ledger.Reset()
}

// Info returns the read-only snapshot of the round.
func (r *Round) Info() RaffleInfo {
	info := RaffleInfo{
		RaffleID:        r.ID,
		State:           r.State,
		EntranceFee:     r.EntranceFee,
		Interval:        r.Interval.String(),
		LastTimestamp:   r.LastTimestamp,
		NumberOfPlayers: r.Ledger.Count(),
		Balance:         r.Ledger.Balance(),
	}
	if r.RecentWinner != nil {
		w := *r.RecentWinner
		info.RecentWinner = &w
	}
	if r.PendingRequestID != nil {
		id := *r.PendingRequestID
		info.PendingRequestID = &id
	}
	if r.PendingSince != nil {
		since := *r.PendingSince
		info.PendingSince = &since
	}
	return info
}

// Clone returns a deep copy.
func (r *Round) Clone() *Round {
	cp := *r
	cp.Ledger = RestoreEntryLedger(r.Ledger.players, r.Ledger.escrow)
	if r.PendingRequestID != nil {
		id := *r.PendingRequestID
		cp.PendingRequestID = &id
	}
	if r.PendingSince != nil {
		since := *r.PendingSince
		cp.PendingSince = &since
	}
	if r.RecentWinner != nil {
		w := *r.RecentWinner
		cp.RecentWinner = &w
	}
	return &cp
}
