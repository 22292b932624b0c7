package raffletypes

import "math"

// MaxEscrow is the largest balance a round can hold.
const MaxEscrow = Amount(math.MaxInt64)

// EntryLedger holds the participants of the current round and the funds they
// escrowed. It is append-only until Reset.
type EntryLedger struct {
	players []PlayerID
	escrow  Amount
}

// RestoreEntryLedger rebuilds a ledger from persisted values.
func RestoreEntryLedger(players []PlayerID, escrow Amount) EntryLedger {
	cp := make([]PlayerID, len(players))
	copy(cp, players)
	return EntryLedger{players: cp, escrow: escrow}
}

// fits reports whether amount can be escrowed without exceeding MaxEscrow.
func (l *EntryLedger) fits(amount Amount) bool {
	return amount >= 0 && amount <= MaxEscrow-l.escrow
}

func (l *EntryLedger) record(player PlayerID, amount Amount) int {
	l.players = append(l.players, player)
	l.escrow += amount
	return len(l.players) - 1
}

// PlayerAt returns the participant at index in entry order.
func (l *EntryLedger) PlayerAt(index int) (PlayerID, error) {
	if index < 0 || index >= len(l.players) {
		return "", ErrIndexOutOfRange
	}
	return l.players[index], nil
}

// Count returns the number of entries in the current round.
func (l *EntryLedger) Count() int { return len(l.players) }

// Balance returns the escrowed amount.
func (l *EntryLedger) Balance() Amount { return l.escrow }

// Players returns a copy of the participants in entry order.
func (l *EntryLedger) Players() []PlayerID {
	out := make([]PlayerID, len(l.players))
	copy(out, l.players)
	return out
}

// Reset empties the ledger. The escrow must already have been paid out.
func (l *EntryLedger) Reset() {
	l.players = []PlayerID{}
	l.escrow = 0
}
