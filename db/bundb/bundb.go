// Package bundb opens the Postgres connection and applies the raffle schema.
package bundb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	rafflemigrations "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories/migrations"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// Open connects to dsn and returns a bun.DB with the raffle models registered.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := pgConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel(
		(*raffledb.Round)(nil),
		(*rafflepayout.Payout)(nil),
		(*rafflepayout.Balance)(nil),
	)
	return db, nil
}

func pgConn(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(10*time.Second),
	))

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqldb, nil
}

// NewMigrator returns the migrator for the raffle schema.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, rafflemigrations.Migrations)
}

// Migrate creates the migration tables if needed and applies pending migrations.
func Migrate(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	if group.IsZero() {
		logger.InfoContext(ctx, "No new migrations to run")
	} else {
		logger.InfoContext(ctx, "Migrated database", slog.String("group", group.String()))
	}
	return nil
}
