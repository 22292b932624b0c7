package raffleservice

import (
	"context"
	"errors"
	"fmt"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/results"
	"github.com/uptrace/bun"
)

// InitializeRaffle creates the round on first start. Once created, the
// persisted entrance fee and interval are authoritative.
func (s *RaffleService) InitializeRaffle(ctx context.Context) (*raffletypes.RaffleInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := withTelemetry(s, ctx, "InitializeRaffle", string(s.settings.RaffleID), func(ctx context.Context) (results.OperationResult[*raffletypes.RaffleInfo, error], error) {
		return runInTx(s, ctx, s.initializeLogic)
	})
	info, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRoundSnapshot(ctx, *info)
	return info, nil
}

func (s *RaffleService) initializeLogic(ctx context.Context, db bun.IDB) (results.OperationResult[*raffletypes.RaffleInfo, error], error) {
	round, err := s.repo.GetRound(ctx, db, s.settings.RaffleID)
	switch {
	case err == nil:
		s.warnOnDrift(ctx, round)
		info := round.Info()
		return results.SuccessResult[*raffletypes.RaffleInfo, error](&info), nil
	case !errors.Is(err, raffledb.ErrNotFound):
		return results.OperationResult[*raffletypes.RaffleInfo, error]{}, fmt.Errorf("failed to load raffle: %w", err)
	}

	round, err = raffletypes.NewRound(s.settings.RaffleID, s.settings.EntranceFee, s.settings.Interval, s.now())
	if err != nil {
		return results.OperationResult[*raffletypes.RaffleInfo, error]{}, fmt.Errorf("invalid raffle settings: %w", err)
	}

	if err := s.repo.CreateRound(ctx, db, round); err != nil {
		if !errors.Is(err, raffledb.ErrAlreadyExists) {
			return results.OperationResult[*raffletypes.RaffleInfo, error]{}, fmt.Errorf("failed to create raffle: %w", err)
		}
		// Another replica created it first.
		existing, err := s.repo.GetRound(ctx, db, s.settings.RaffleID)
		if err != nil {
			return results.OperationResult[*raffletypes.RaffleInfo, error]{}, fmt.Errorf("failed to load raffle: %w", err)
		}
		round = existing
	} else {
		s.logger.InfoContext(ctx, "Raffle created",
			attr.RaffleID(string(round.ID)),
			attr.Int64("entrance_fee", int64(round.EntranceFee)),
			attr.Duration("interval", round.Interval),
		)
	}

	info := round.Info()
	return results.SuccessResult[*raffletypes.RaffleInfo, error](&info), nil
}

func (s *RaffleService) warnOnDrift(ctx context.Context, round *raffletypes.Round) {
	if round.EntranceFee == s.settings.EntranceFee && round.Interval == s.settings.Interval {
		return
	}
	s.logger.WarnContext(ctx, "Configured raffle parameters differ from the persisted round; keeping persisted values",
		attr.RaffleID(string(round.ID)),
		attr.Int64("persisted_entrance_fee", int64(round.EntranceFee)),
		attr.Int64("configured_entrance_fee", int64(s.settings.EntranceFee)),
		attr.Duration("persisted_interval", round.Interval),
		attr.Duration("configured_interval", s.settings.Interval),
	)
}

// lockRound loads the round and locks it for the rest of the transaction.
func (s *RaffleService) lockRound(ctx context.Context, db bun.IDB) (*raffletypes.Round, error) {
	round, err := s.repo.GetRoundForUpdate(ctx, db, s.settings.RaffleID)
	if err != nil {
		if errors.Is(err, raffledb.ErrNotFound) {
			return nil, fmt.Errorf("raffle %s is not initialized: %w", s.settings.RaffleID, err)
		}
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	return round, nil
}
