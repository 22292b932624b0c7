package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding draw columns to raffle_payouts...")

		if _, err := db.ExecContext(ctx, `
			ALTER TABLE raffle_payouts
				ADD COLUMN IF NOT EXISTS winner_index INTEGER NOT NULL DEFAULT 0 CHECK (winner_index >= 0),
				ADD COLUMN IF NOT EXISTS random_word TEXT NOT NULL DEFAULT '';
		`); err != nil {
			return fmt.Errorf("failed to add draw columns: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping draw columns from raffle_payouts...")

		if _, err := db.ExecContext(ctx, `
			ALTER TABLE raffle_payouts
				DROP COLUMN IF EXISTS random_word,
				DROP COLUMN IF EXISTS winner_index;
		`); err != nil {
			return fmt.Errorf("failed to drop draw columns: %w", err)
		}
		return nil
	})
}
