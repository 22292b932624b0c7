package raffleservice

import (
	"context"
	"fmt"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/results"
	"github.com/uptrace/bun"
)

// CheckUpkeep evaluates eligibility without changing the round.
func (s *RaffleService) CheckUpkeep(ctx context.Context) (*raffletypes.UpkeepStatus, error) {
	checkTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*raffletypes.UpkeepStatus, error], error) {
		round, err := s.repo.GetRound(ctx, db, s.settings.RaffleID)
		if err != nil {
			return results.OperationResult[*raffletypes.UpkeepStatus, error]{}, fmt.Errorf("failed to load raffle: %w", err)
		}
		status := round.CheckUpkeep(s.now())
		return results.SuccessResult[*raffletypes.UpkeepStatus, error](&status), nil
	}

	result, err := withTelemetry(s, ctx, "CheckUpkeep", string(s.settings.RaffleID), func(ctx context.Context) (results.OperationResult[*raffletypes.UpkeepStatus, error], error) {
		return runInTx(s, ctx, checkTx)
	})
	return unwrap(result, err)
}

// PerformUpkeep closes an eligible round, requests randomness and emits
// RequestedRandomness. It returns an *raffletypes.UpkeepNotNeededError
// when the round is not eligible.
func (s *RaffleService) PerformUpkeep(ctx context.Context) (raffletypes.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info raffletypes.RaffleInfo
	performTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[raffletypes.RequestID, error], error) {
		round, err := s.lockRound(ctx, db)
		if err != nil {
			return results.OperationResult[raffletypes.RequestID, error]{}, err
		}

		now := s.now()
		if err := round.RequireUpkeep(now); err != nil {
			return results.FailureResult[raffletypes.RequestID, error](err), nil
		}

		requestID, err := s.coordinator.RequestRandomWords(ctx, s.randomWordsRequest())
		if err != nil {
			return results.OperationResult[raffletypes.RequestID, error]{}, fmt.Errorf("failed to request random words: %w", err)
		}

		if err := round.BeginCalculating(requestID, now); err != nil {
			return results.OperationResult[raffletypes.RequestID, error]{}, err
		}
		if err := s.repo.SaveRound(ctx, db, round); err != nil {
			return results.OperationResult[raffletypes.RequestID, error]{}, fmt.Errorf("failed to save round: %w", err)
		}
		info = round.Info()
		return results.SuccessResult[raffletypes.RequestID, error](requestID), nil
	}

	result, err := withTelemetry(s, ctx, "PerformUpkeep", string(s.settings.RaffleID), func(ctx context.Context) (results.OperationResult[raffletypes.RequestID, error], error) {
		return runInTx(s, ctx, performTx)
	})
	requestID, err := unwrap(result, err)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "Round closed, awaiting randomness",
		attr.ExtractCorrelationID(ctx),
		attr.RaffleID(string(s.settings.RaffleID)),
		attr.RequestID(string(requestID)),
		attr.Int("players", info.NumberOfPlayers),
	)
	s.metrics.RecordRandomnessRequest(ctx)
	s.metrics.RecordRoundSnapshot(ctx, info)
	s.publish(ctx, handlerwrapper.Result{
		Topic: raffleevents.RandomnessRequestedV1,
		Payload: &raffleevents.RandomnessRequestedPayloadV1{
			RaffleID:  s.settings.RaffleID,
			RequestID: requestID,
		},
	})
	return requestID, nil
}

func (s *RaffleService) randomWordsRequest() raffletypes.RandomWordsRequest {
	return raffletypes.RandomWordsRequest{
		RaffleID:             s.settings.RaffleID,
		KeyHash:              s.settings.KeyHash,
		SubscriptionID:       s.settings.SubscriptionID,
		MinimumConfirmations: s.settings.MinimumConfirmations,
		CallbackGasLimit:     s.settings.CallbackGasLimit,
		NumWords:             s.settings.NumWords,
	}
}
