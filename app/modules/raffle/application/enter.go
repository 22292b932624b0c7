package raffleservice

import (
	"context"
	"fmt"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/results"
	"github.com/uptrace/bun"
)

// Enter records a paid entry and emits EntryRecorded.
func (s *RaffleService) Enter(ctx context.Context, player raffletypes.PlayerID, amount raffletypes.Amount) (*raffletypes.EntryReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info raffletypes.RaffleInfo
	enterTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*raffletypes.EntryReceipt, error], error) {
		round, err := s.lockRound(ctx, db)
		if err != nil {
			return results.OperationResult[*raffletypes.EntryReceipt, error]{}, err
		}

		receipt, err := round.Enter(player, amount)
		if err != nil {
			return results.FailureResult[*raffletypes.EntryReceipt, error](err), nil
		}

		if err := s.repo.SaveRound(ctx, db, round); err != nil {
			return results.OperationResult[*raffletypes.EntryReceipt, error]{}, fmt.Errorf("failed to save entry: %w", err)
		}
		info = round.Info()
		return results.SuccessResult[*raffletypes.EntryReceipt, error](&receipt), nil
	}

	result, err := withTelemetry(s, ctx, "Enter", string(player), func(ctx context.Context) (results.OperationResult[*raffletypes.EntryReceipt, error], error) {
		return runInTx(s, ctx, enterTx)
	})
	receipt, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEntry(ctx, receipt.Amount)
	s.metrics.RecordRoundSnapshot(ctx, info)
	s.publish(ctx, handlerwrapper.Result{
		Topic: raffleevents.EntryRecordedV1,
		Payload: &raffleevents.EntryRecordedPayloadV1{
			RaffleID: s.settings.RaffleID,
			Player:   receipt.Player,
			Amount:   receipt.Amount,
			Index:    receipt.Index,
		},
	})
	return receipt, nil
}
