package rafflepayout

import (
	"context"
	"math/big"
	"testing"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWallet(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		setup       func(w *MemoryWallet)
		transfer    Transfer
		wantErr     bool
		wantBalance raffletypes.Amount
	}{
		{
			name:        "credits the recipient",
			transfer:    Transfer{RaffleID: "default", RequestID: "1", To: "alice", Amount: 40},
			wantBalance: 40,
		},
		{
			name:     "rejected recipient",
			setup:    func(w *MemoryWallet) { w.Reject("alice") },
			transfer: Transfer{RaffleID: "default", RequestID: "1", To: "alice", Amount: 40},
			wantErr:  true,
		},
		{
			name: "accepted again after reject",
			setup: func(w *MemoryWallet) {
				w.Reject("alice")
				w.Accept("alice")
			},
			transfer:    Transfer{RaffleID: "default", RequestID: "1", To: "alice", Amount: 5},
			wantBalance: 5,
		},
		{
			name:     "zero amount",
			transfer: Transfer{RaffleID: "default", RequestID: "1", To: "alice", Amount: 0},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewMemoryWallet()
			if tt.setup != nil {
				tt.setup(w)
			}
			err := w.Transfer(ctx, nil, tt.transfer)
			if tt.wantErr {
				assert.ErrorIs(t, err, raffletypes.ErrTransferFailed)
				assert.Empty(t, w.Payouts())
			} else {
				require.NoError(t, err)
				assert.Len(t, w.Payouts(), 1)
			}
			got, err := w.BalanceOf(ctx, nil, tt.transfer.To)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, got)
		})
	}
}

func TestMemoryWalletGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("balance overflow", func(t *testing.T) {
		w := NewMemoryWallet()
		require.NoError(t, w.Transfer(ctx, nil, Transfer{RaffleID: "default", RequestID: "1", To: "alice", Amount: raffletypes.MaxEscrow}))

		err := w.Transfer(ctx, nil, Transfer{RaffleID: "default", RequestID: "2", To: "alice", Amount: 1})
		assert.ErrorIs(t, err, raffletypes.ErrTransferFailed)
		got, err := w.BalanceOf(ctx, nil, "alice")
		require.NoError(t, err)
		assert.Equal(t, raffletypes.MaxEscrow, got)
	})

	t.Run("request paid once", func(t *testing.T) {
		w := NewMemoryWallet()
		require.NoError(t, w.Transfer(ctx, nil, Transfer{RaffleID: "default", RequestID: "1", To: "alice", Amount: 5}))
		err := w.Transfer(ctx, nil, Transfer{RaffleID: "default", RequestID: "1", To: "bob", Amount: 5})
		assert.ErrorIs(t, err, raffletypes.ErrTransferFailed)
		assert.Len(t, w.Payouts(), 1)
	})
}

func TestMemoryWalletLookup(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryWallet()
	resolvedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	want := Transfer{
		RaffleID:    "default",
		RequestID:   "p-1",
		To:          "bob",
		Amount:      300,
		WinnerIndex: 1,
		RandomWord:  big.NewInt(7),
		ResolvedAt:  resolvedAt,
	}
	require.NoError(t, w.Transfer(ctx, nil, want))

	got, err := w.Lookup(ctx, nil, "default", "p-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	res := got.Resolution()
	assert.Equal(t, raffletypes.PlayerID("bob"), res.Winner)
	assert.Equal(t, 1, res.WinnerIndex)
	assert.Equal(t, resolvedAt, res.ResolvedAt)
	assert.Equal(t, 0, big.NewInt(7).Cmp(res.RandomWord))

	_, err = w.Lookup(ctx, nil, "default", "p-2")
	assert.ErrorIs(t, err, ErrPayoutNotFound)
	_, err = w.Lookup(ctx, nil, "other", "p-1")
	assert.ErrorIs(t, err, ErrPayoutNotFound)
}
