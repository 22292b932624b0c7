package raffleservice

import (
	"context"
	"errors"
	"fmt"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	"github.com/uptrace/bun"
)

// GetRaffle returns a snapshot of the round.
func (s *RaffleService) GetRaffle(ctx context.Context) (*raffletypes.RaffleInfo, error) {
	round, err := s.repo.GetRound(ctx, s.queryDB(), s.settings.RaffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load raffle: %w", err)
	}
	info := round.Info()
	return &info, nil
}

// GetPlayer returns the participant at index of the current round.
func (s *RaffleService) GetPlayer(ctx context.Context, index int) (raffletypes.PlayerID, error) {
	round, err := s.repo.GetRound(ctx, s.queryDB(), s.settings.RaffleID)
	if err != nil {
		return "", fmt.Errorf("failed to load raffle: %w", err)
	}
	return round.PlayerAt(index)
}

// GetWinnings returns everything ever paid out to player.
func (s *RaffleService) GetWinnings(ctx context.Context, player raffletypes.PlayerID) (raffletypes.Amount, error) {
	return s.payout.BalanceOf(ctx, s.queryDB(), player)
}

// GetResolution returns the resolution of a completed request. Recent
// resolutions are served from memory; older ones are read back from the
// payout record.
func (s *RaffleService) GetResolution(ctx context.Context, requestID raffletypes.RequestID) (*raffletypes.Resolution, error) {
	if res, ok := s.resolved.Get(requestID); ok {
		return &res, nil
	}

	t, err := s.payout.Lookup(ctx, s.queryDB(), s.settings.RaffleID, requestID)
	if err != nil {
		if errors.Is(err, rafflepayout.ErrPayoutNotFound) {
			return nil, raffletypes.ErrUnknownRequestID
		}
		return nil, fmt.Errorf("failed to load resolution: %w", err)
	}
	res := t.Resolution()
	s.resolved.Add(requestID, res)
	return &res, nil
}

// wasResolved reports whether requestID has already been paid out.
func (s *RaffleService) wasResolved(ctx context.Context, db bun.IDB, requestID raffletypes.RequestID) bool {
	if s.resolved.Contains(requestID) {
		return true
	}
	_, err := s.payout.Lookup(ctx, db, s.settings.RaffleID, requestID)
	return err == nil
}
