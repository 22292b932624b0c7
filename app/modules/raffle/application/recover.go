package raffleservice

import (
	"context"
	"fmt"
	"time"

	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/results"
	"github.com/uptrace/bun"
)

type reissue struct {
	previous raffletypes.RequestID
	current  raffletypes.RequestID
}

// RecoverStaleRequest re-issues the randomness request of a round stuck in
// CALCULATING for longer than Settings.RequestTimeout. Entries are kept and
// the previous request id can no longer resolve the round.
func (s *RaffleService) RecoverStaleRequest(ctx context.Context) (*raffletypes.RequestID, error) {
	if s.settings.RequestTimeout <= 0 {
		return nil, nil
	}
	return s.reissuePending(ctx, "RecoverStaleRequest", func(round *raffletypes.Round, now time.Time) bool {
		return round.IsStale(now, s.settings.RequestTimeout)
	})
}

// ReissuePendingRequest replaces the outstanding request of a CALCULATING
// round regardless of its age. It is used on start when the coordinator
// cannot have kept requests across a restart. It returns nil when the round
// is open.
func (s *RaffleService) ReissuePendingRequest(ctx context.Context) (*raffletypes.RequestID, error) {
	return s.reissuePending(ctx, "ReissuePendingRequest", func(round *raffletypes.Round, _ time.Time) bool {
		return round.State == raffletypes.StateCalculating && round.PendingRequestID != nil
	})
}

func (s *RaffleService) reissuePending(ctx context.Context, operation string, due func(*raffletypes.Round, time.Time) bool) (*raffletypes.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reissueTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*reissue, error], error) {
		round, err := s.lockRound(ctx, db)
		if err != nil {
			return results.OperationResult[*reissue, error]{}, err
		}

		now := s.now()
		if !due(round, now) {
			return results.SuccessResult[*reissue, error](&reissue{}), nil
		}
		previous := *round.PendingRequestID

		requestID, err := s.coordinator.RequestRandomWords(ctx, s.randomWordsRequest())
		if err != nil {
			return results.OperationResult[*reissue, error]{}, fmt.Errorf("failed to re-request random words: %w", err)
		}
		if err := round.ReplacePendingRequest(requestID, now); err != nil {
			return results.OperationResult[*reissue, error]{}, err
		}
		if err := s.repo.SaveRound(ctx, db, round); err != nil {
			return results.OperationResult[*reissue, error]{}, fmt.Errorf("failed to save round: %w", err)
		}
		return results.SuccessResult[*reissue, error](&reissue{previous: previous, current: requestID}), nil
	}

	result, err := withTelemetry(s, ctx, operation, string(s.settings.RaffleID), func(ctx context.Context) (results.OperationResult[*reissue, error], error) {
		return runInTx(s, ctx, reissueTx)
	})
	r, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}
	if r.current == "" {
		return nil, nil
	}

	s.logger.WarnContext(ctx, "Randomness request re-issued",
		attr.RaffleID(string(s.settings.RaffleID)),
		attr.String("operation", operation),
		attr.String("previous_request_id", string(r.previous)),
		attr.RequestID(string(r.current)),
	)
	s.metrics.RecordRandomnessRequest(ctx)
	s.publish(ctx, handlerwrapper.Result{
		Topic: raffleevents.RandomnessReissuedV1,
		Payload: &raffleevents.RandomnessReissuedPayloadV1{
			RaffleID:          s.settings.RaffleID,
			RequestID:         r.current,
			PreviousRequestID: r.previous,
		},
	})
	id := r.current
	return &id, nil
}
