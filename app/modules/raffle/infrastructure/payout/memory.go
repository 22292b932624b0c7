package rafflepayout

import (
	"context"
	"fmt"
	"sync"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/uptrace/bun"
)

// MemoryWallet keeps balances in process memory. Recipients marked with
// Reject refuse every transfer.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[raffletypes.PlayerID]raffletypes.Amount
	rejected map[raffletypes.PlayerID]bool
	payouts  []Transfer
}

// NewMemoryWallet creates an empty wallet.
func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{
		balances: make(map[raffletypes.PlayerID]raffletypes.Amount),
		rejected: make(map[raffletypes.PlayerID]bool),
	}
}

var _ Executor = (*MemoryWallet)(nil)

// Reject makes transfers to player fail until Accept is called.
func (w *MemoryWallet) Reject(player raffletypes.PlayerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rejected[player] = true
}

// Accept clears a previous Reject.
func (w *MemoryWallet) Accept(player raffletypes.PlayerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.rejected, player)
}

func (w *MemoryWallet) Transfer(_ context.Context, _ bun.IDB, t Transfer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.To == "" || t.Amount <= 0 {
		return fmt.Errorf("%w: invalid transfer of %d to %q", raffletypes.ErrTransferFailed, t.Amount, t.To)
	}
	if w.rejected[t.To] {
		return fmt.Errorf("%w: recipient %s refused the transfer", raffletypes.ErrTransferFailed, t.To)
	}
	if t.Amount > raffletypes.MaxEscrow-w.balances[t.To] {
		return fmt.Errorf("%w: balance of %s would overflow", raffletypes.ErrTransferFailed, t.To)
	}
	for _, p := range w.payouts {
		if p.RaffleID == t.RaffleID && p.RequestID == t.RequestID {
			return fmt.Errorf("%w: request %s already paid", raffletypes.ErrTransferFailed, t.RequestID)
		}
	}
	w.balances[t.To] += t.Amount
	w.payouts = append(w.payouts, t)
	return nil
}

func (w *MemoryWallet) BalanceOf(_ context.Context, _ bun.IDB, player raffletypes.PlayerID) (raffletypes.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[player], nil
}

// Lookup returns the transfer recorded for requestID.
func (w *MemoryWallet) Lookup(_ context.Context, _ bun.IDB, raffleID raffletypes.RaffleID, requestID raffletypes.RequestID) (Transfer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.payouts {
		if p.RaffleID == raffleID && p.RequestID == requestID {
			return p, nil
		}
	}
	return Transfer{}, ErrPayoutNotFound
}

// Payouts returns the completed transfers in order.
func (w *MemoryWallet) Payouts() []Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Transfer, len(w.payouts))
	copy(out, w.payouts)
	return out
}
