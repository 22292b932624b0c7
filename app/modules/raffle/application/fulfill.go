package raffleservice

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/results"
	"github.com/uptrace/bun"
)

// FulfillRandomWords resolves the pending request. The winner is paid the
// whole escrow before the round reopens; a failed payout leaves the round
// CALCULATING and returns an error wrapping raffletypes.ErrTransferFailed.
func (s *RaffleService) FulfillRandomWords(ctx context.Context, requestID raffletypes.RequestID, words []*big.Int, proof []byte) (*raffletypes.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info raffletypes.RaffleInfo
	fulfillTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*raffletypes.Resolution, error], error) {
		if len(words) == 0 {
			return results.FailureResult[*raffletypes.Resolution, error](raffletypes.ErrInvalidRandomWords), nil
		}

		round, err := s.lockRound(ctx, db)
		if err != nil {
			return results.OperationResult[*raffletypes.Resolution, error]{}, err
		}

		idx, winner, err := round.PickWinner(requestID, words)
		if err != nil {
			if errors.Is(err, raffletypes.ErrUnknownRequestID) && s.wasResolved(ctx, db, requestID) {
				err = fmt.Errorf("%w: request %s already resolved", raffletypes.ErrUnknownRequestID, requestID)
			}
			return results.FailureResult[*raffletypes.Resolution, error](err), nil
		}

		if s.verifier != nil {
			if err := s.verifier.Verify(requestID, s.settings.KeyHash, words, proof); err != nil {
				return results.FailureResult[*raffletypes.Resolution, error](
					fmt.Errorf("%w: %v", raffletypes.ErrInvalidRandomWords, err),
				), nil
			}
		}

		prize := round.Ledger.Balance()
		now := s.now()
		err = s.payout.Transfer(ctx, db, rafflepayout.Transfer{
			RaffleID:    round.ID,
			RequestID:   requestID,
			To:          winner,
			Amount:      prize,
			WinnerIndex: idx,
			RandomWord:  new(big.Int).Set(words[0]),
			ResolvedAt:  now,
		})
		if err != nil {
			s.metrics.RecordPayoutFailure(ctx)
			if !errors.Is(err, raffletypes.ErrTransferFailed) {
				err = fmt.Errorf("%w: %v", raffletypes.ErrTransferFailed, err)
			}
			return results.OperationResult[*raffletypes.Resolution, error]{}, err
		}

		round.Reopen(winner, now)
		if err := s.repo.SaveRound(ctx, db, round); err != nil {
			return results.OperationResult[*raffletypes.Resolution, error]{}, fmt.Errorf("failed to save resolved round: %w", err)
		}
		info = round.Info()

		resolution := &raffletypes.Resolution{
			RequestID:   requestID,
			Winner:      winner,
			WinnerIndex: idx,
			Payout:      prize,
			ResolvedAt:  now,
			RandomWord:  new(big.Int).Set(words[0]),
		}
		return results.SuccessResult[*raffletypes.Resolution, error](resolution), nil
	}

	result, err := withTelemetry(s, ctx, "FulfillRandomWords", string(requestID), func(ctx context.Context) (results.OperationResult[*raffletypes.Resolution, error], error) {
		return runInTx(s, ctx, fulfillTx)
	})
	resolution, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}

	s.resolved.Add(requestID, *resolution)
	s.metrics.RecordWinner(ctx, resolution.Payout)
	s.metrics.RecordRoundSnapshot(ctx, info)
	s.logger.InfoContext(ctx, "Winner picked",
		attr.ExtractCorrelationID(ctx),
		attr.RaffleID(string(s.settings.RaffleID)),
		attr.RequestID(string(requestID)),
		attr.Player(string(resolution.Winner)),
		attr.Int64("payout", int64(resolution.Payout)),
	)
	s.publish(ctx, handlerwrapper.Result{
		Topic: raffleevents.WinnerPickedV1,
		Payload: &raffleevents.WinnerPickedPayloadV1{
			RaffleID:    s.settings.RaffleID,
			RequestID:   requestID,
			Winner:      resolution.Winner,
			WinnerIndex: resolution.WinnerIndex,
			Amount:      resolution.Payout,
			ResolvedAt:  resolution.ResolvedAt,
		},
	})
	return resolution, nil
}
