package rafflepayout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LedgerExecutor credits winners in the raffle_balances table. Run inside
// the resolving transaction, a failed round update also undoes the credit.
type LedgerExecutor struct {
	db bun.IDB
}

// NewLedgerExecutor creates a Postgres backed executor.
func NewLedgerExecutor(db bun.IDB) *LedgerExecutor {
	return &LedgerExecutor{db: db}
}

var _ Executor = (*LedgerExecutor)(nil)

func (e *LedgerExecutor) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return e.db
	}
	return db
}

// Transfer records the payout and credits the winner.
func (e *LedgerExecutor) Transfer(ctx context.Context, db bun.IDB, t Transfer) error {
	if t.To == "" || t.Amount <= 0 {
		return fmt.Errorf("%w: invalid transfer of %d to %q", raffletypes.ErrTransferFailed, t.Amount, t.To)
	}
	db = e.resolveDB(db)
	now := time.Now().UTC()
	resolvedAt := t.ResolvedAt.UTC()
	if t.ResolvedAt.IsZero() {
		resolvedAt = now
	}
	word := ""
	if t.RandomWord != nil {
		word = t.RandomWord.String()
	}

	payout := &Payout{
		ID:          uuid.New(),
		RaffleID:    t.RaffleID,
		RequestID:   t.RequestID,
		Winner:      t.To,
		Amount:      t.Amount,
		WinnerIndex: t.WinnerIndex,
		RandomWord:  word,
		CreatedAt:   resolvedAt,
	}
	if _, err := db.NewInsert().Model(payout).Exec(ctx); err != nil {
		return fmt.Errorf("%w: record payout: %v", raffletypes.ErrTransferFailed, err)
	}

	balance := &Balance{Player: t.To, Balance: t.Amount, UpdatedAt: now}
	if _, err := db.NewInsert().
		Model(balance).
		On("CONFLICT (player) DO UPDATE").
		Set("balance = rb.balance + EXCLUDED.balance").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: credit winner: %v", raffletypes.ErrTransferFailed, err)
	}
	return nil
}

// BalanceOf returns the total credited to player.
func (e *LedgerExecutor) BalanceOf(ctx context.Context, db bun.IDB, player raffletypes.PlayerID) (raffletypes.Amount, error) {
	db = e.resolveDB(db)
	balance := new(Balance)
	err := db.NewSelect().
		Model(balance).
		Where("rb.player = ?", player).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Balance, nil
}

// Lookup reads back the payout recorded for requestID.
func (e *LedgerExecutor) Lookup(ctx context.Context, db bun.IDB, raffleID raffletypes.RaffleID, requestID raffletypes.RequestID) (Transfer, error) {
	db = e.resolveDB(db)
	payout := new(Payout)
	err := db.NewSelect().
		Model(payout).
		Where("rp.raffle_id = ?", raffleID).
		Where("rp.request_id = ?", requestID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transfer{}, ErrPayoutNotFound
		}
		return Transfer{}, fmt.Errorf("failed to get payout: %w", err)
	}

	t := Transfer{
		RaffleID:    payout.RaffleID,
		RequestID:   payout.RequestID,
		To:          payout.Winner,
		Amount:      payout.Amount,
		WinnerIndex: payout.WinnerIndex,
		ResolvedAt:  payout.CreatedAt.UTC(),
	}
	if payout.RandomWord != "" {
		word, ok := new(big.Int).SetString(payout.RandomWord, 10)
		if !ok {
			return Transfer{}, fmt.Errorf("payout %s has a malformed random word", requestID)
		}
		t.RandomWord = word
	}
	return t, nil
}
