package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating raffle tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_rounds (
					id TEXT PRIMARY KEY,
					state SMALLINT NOT NULL DEFAULT 0 CHECK (state IN (0, 1)),
					entrance_fee BIGINT NOT NULL CHECK (entrance_fee > 0),
					interval_ms BIGINT NOT NULL CHECK (interval_ms > 0),
					last_timestamp TIMESTAMPTZ NOT NULL,
					players JSONB NOT NULL DEFAULT '[]'::jsonb,
					escrow BIGINT NOT NULL DEFAULT 0 CHECK (escrow >= 0),
					pending_request_id TEXT,
					pending_since TIMESTAMPTZ,
					recent_winner TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_rounds table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_balances (
					player TEXT PRIMARY KEY,
					balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_balances table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_payouts (
					id UUID PRIMARY KEY,
					raffle_id TEXT NOT NULL REFERENCES raffle_rounds(id),
					request_id TEXT NOT NULL,
					winner TEXT NOT NULL,
					amount BIGINT NOT NULL CHECK (amount > 0),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (raffle_id, request_id)
				);
				CREATE INDEX IF NOT EXISTS idx_raffle_payouts_winner ON raffle_payouts(winner);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_payouts table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping raffle tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS raffle_payouts;
				DROP TABLE IF EXISTS raffle_balances;
				DROP TABLE IF EXISTS raffle_rounds;
			`); err != nil {
				return fmt.Errorf("failed to drop raffle tables: %w", err)
			}
			return nil
		})
	})
}
