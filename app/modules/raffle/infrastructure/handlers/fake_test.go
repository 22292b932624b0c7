package rafflehandlers

import (
	"context"
	"math/big"

	raffleservice "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/application"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
)

// FakeService implements raffleservice.Service for handler testing.
type FakeService struct {
	trace []string

	InitializeRaffleFunc    func(ctx context.Context) (*raffletypes.RaffleInfo, error)
	EnterFunc               func(ctx context.Context, player raffletypes.PlayerID, amount raffletypes.Amount) (*raffletypes.EntryReceipt, error)
	CheckUpkeepFunc         func(ctx context.Context) (*raffletypes.UpkeepStatus, error)
	PerformUpkeepFunc       func(ctx context.Context) (raffletypes.RequestID, error)
	FulfillRandomWordsFunc  func(ctx context.Context, id raffletypes.RequestID, words []*big.Int, proof []byte) (*raffletypes.Resolution, error)
	RecoverStaleRequestFunc func(ctx context.Context) (*raffletypes.RequestID, error)
	GetRaffleFunc           func(ctx context.Context) (*raffletypes.RaffleInfo, error)
	GetPlayerFunc           func(ctx context.Context, index int) (raffletypes.PlayerID, error)
	GetWinningsFunc         func(ctx context.Context, player raffletypes.PlayerID) (raffletypes.Amount, error)
	GetResolutionFunc       func(ctx context.Context, id raffletypes.RequestID) (*raffletypes.Resolution, error)
}

func NewFakeService() *FakeService {
	return &FakeService{trace: []string{}}
}

func (f *FakeService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeService) Trace() []string {
	return f.trace
}

var _ raffleservice.Service = (*FakeService)(nil)

func (f *FakeService) InitializeRaffle(ctx context.Context) (*raffletypes.RaffleInfo, error) {
	f.record("InitializeRaffle")
	if f.InitializeRaffleFunc != nil {
		return f.InitializeRaffleFunc(ctx)
	}
	return &raffletypes.RaffleInfo{}, nil
}

func (f *FakeService) Enter(ctx context.Context, player raffletypes.PlayerID, amount raffletypes.Amount) (*raffletypes.EntryReceipt, error) {
	f.record("Enter")
	if f.EnterFunc != nil {
		return f.EnterFunc(ctx, player, amount)
	}
	return &raffletypes.EntryReceipt{Player: player, Amount: amount}, nil
}

func (f *FakeService) CheckUpkeep(ctx context.Context) (*raffletypes.UpkeepStatus, error) {
	f.record("CheckUpkeep")
	if f.CheckUpkeepFunc != nil {
		return f.CheckUpkeepFunc(ctx)
	}
	return &raffletypes.UpkeepStatus{}, nil
}

func (f *FakeService) PerformUpkeep(ctx context.Context) (raffletypes.RequestID, error) {
	f.record("PerformUpkeep")
	if f.PerformUpkeepFunc != nil {
		return f.PerformUpkeepFunc(ctx)
	}
	return "1", nil
}

func (f *FakeService) FulfillRandomWords(ctx context.Context, id raffletypes.RequestID, words []*big.Int, proof []byte) (*raffletypes.Resolution, error) {
	f.record("FulfillRandomWords")
	if f.FulfillRandomWordsFunc != nil {
		return f.FulfillRandomWordsFunc(ctx, id, words, proof)
	}
	return &raffletypes.Resolution{RequestID: id}, nil
}

func (f *FakeService) RecoverStaleRequest(ctx context.Context) (*raffletypes.RequestID, error) {
	f.record("RecoverStaleRequest")
	if f.RecoverStaleRequestFunc != nil {
		return f.RecoverStaleRequestFunc(ctx)
	}
	return nil, nil
}

func (f *FakeService) GetRaffle(ctx context.Context) (*raffletypes.RaffleInfo, error) {
	f.record("GetRaffle")
	if f.GetRaffleFunc != nil {
		return f.GetRaffleFunc(ctx)
	}
	return &raffletypes.RaffleInfo{}, nil
}

func (f *FakeService) GetPlayer(ctx context.Context, index int) (raffletypes.PlayerID, error) {
	f.record("GetPlayer")
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, index)
	}
	return "", raffletypes.ErrIndexOutOfRange
}

func (f *FakeService) GetWinnings(ctx context.Context, player raffletypes.PlayerID) (raffletypes.Amount, error) {
	f.record("GetWinnings")
	if f.GetWinningsFunc != nil {
		return f.GetWinningsFunc(ctx, player)
	}
	return 0, nil
}

func (f *FakeService) GetResolution(ctx context.Context, id raffletypes.RequestID) (*raffletypes.Resolution, error) {
	f.record("GetResolution")
	if f.GetResolutionFunc != nil {
		return f.GetResolutionFunc(ctx, id)
	}
	return nil, raffletypes.ErrUnknownRequestID
}
