package raffledb

import (
	"context"
	"sync"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/uptrace/bun"
)

// MemoryRepository keeps rounds in process memory. The db argument is
// ignored; callers serialize mutations themselves.
type MemoryRepository struct {
	mu     sync.RWMutex
	rounds map[raffletypes.RaffleID]*raffletypes.Round
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rounds: make(map[raffletypes.RaffleID]*raffletypes.Round)}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) GetRound(_ context.Context, _ bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryRepository) GetRoundForUpdate(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error) {
	return m.GetRound(ctx, db, id)
}

func (m *MemoryRepository) CreateRound(_ context.Context, _ bun.IDB, round *raffletypes.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[round.ID]; ok {
		return ErrAlreadyExists
	}
	m.rounds[round.ID] = round.Clone()
	return nil
}

func (m *MemoryRepository) SaveRound(_ context.Context, _ bun.IDB, round *raffletypes.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[round.ID]; !ok {
		return ErrNotFound
	}
	m.rounds[round.ID] = round.Clone()
	return nil
}
