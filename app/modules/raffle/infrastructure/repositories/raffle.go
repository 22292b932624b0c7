package raffledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a raffle has no round.
	ErrNotFound = errors.New("raffle round not found")
	// ErrAlreadyExists is returned when creating a round that already exists.
	ErrAlreadyExists = errors.New("raffle round already exists")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new raffle repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// GetRound retrieves the round of a raffle.
func (r *Impl) GetRound(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error) {
	return r.getRound(ctx, r.resolveDB(db), id, false)
}

// GetRoundForUpdate retrieves the round with a row lock.
func (r *Impl) GetRoundForUpdate(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error) {
	return r.getRound(ctx, r.resolveDB(db), id, true)
}

func (r *Impl) getRound(ctx context.Context, db bun.IDB, id raffletypes.RaffleID, forUpdate bool) (*raffletypes.Round, error) {
	model := new(Round)
	q := db.NewSelect().
		Model(model).
		Where("rr.id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get raffle round: %w", err)
	}
	return model.toDomain(), nil
}

// CreateRound inserts a new round.
func (r *Impl) CreateRound(ctx context.Context, db bun.IDB, round *raffletypes.Round) error {
	db = r.resolveDB(db)
	model := fromDomain(round)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	result, err := db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create raffle round: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// SaveRound persists every mutable field of the round.
func (r *Impl) SaveRound(ctx context.Context, db bun.IDB, round *raffletypes.Round) error {
	db = r.resolveDB(db)
	model := fromDomain(round)
	model.UpdatedAt = time.Now().UTC()

	result, err := db.NewUpdate().
		Model(model).
		Column("state", "last_timestamp", "players", "escrow", "pending_request_id", "pending_since", "recent_winner", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save raffle round: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
