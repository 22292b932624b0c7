package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	raffleapi "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/api"
	"github.com/Black-And-White-Club/raffle-bot/config"
	"github.com/Black-And-White-Club/raffle-bot/db/bundb"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "bun",
		Usage: "raffle database and operator tooling",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yaml",
				Usage: "Path to the configuration file",
			},
		},
		Commands: []*cli.Command{
			newDBCommand(),
			newTokenCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// withMigrator opens the database for a single command.
func withMigrator(c *cli.Context, fn func(ctx context.Context, migrator *migrate.Migrator) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for migrations")
	}

	db, err := bundb.Open(c.Context, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(c.Context, bundb.NewMigrator(db))
}

func newDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, migrator *migrate.Migrator) error {
						return migrator.Init(ctx)
					})
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, migrator *migrate.Migrator) error {
						if err := migrator.Lock(ctx); err != nil {
							return err
						}
						defer migrator.Unlock(ctx) //nolint:errcheck

						group, err := migrator.Migrate(ctx)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Println("No new migrations to run")
						} else {
							fmt.Printf("Migrated to %s\n", group)
						}
						return nil
					})
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, migrator *migrate.Migrator) error {
						if err := migrator.Lock(ctx); err != nil {
							return err
						}
						defer migrator.Unlock(ctx) //nolint:errcheck

						group, err := migrator.Rollback(ctx)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Println("No groups to roll back")
						} else {
							fmt.Printf("Rolled back %s\n", group)
						}
						return nil
					})
				},
			},
			{
				Name:  "create_go",
				Usage: "create Go migration",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, migrator *migrate.Migrator) error {
						name := strings.Join(c.Args().Slice(), "_")
						mf, err := migrator.CreateGoMigration(ctx, name)
						if err != nil {
							return err
						}
						fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, migrator *migrate.Migrator) error {
						ms, err := migrator.MigrationsWithStatus(ctx)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations: %s\n", ms)
						fmt.Printf("Applied: %s\n", ms.Applied())
						fmt.Printf("Unapplied: %s\n", ms.Unapplied())
						return nil
					})
				},
			},
		},
	}
}

func newTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "issue an API token for a player",
		ArgsUsage: "<player>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			player := c.Args().First()
			if player == "" {
				return fmt.Errorf("player is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}
			token, err := raffleapi.IssueToken(cfg.JWT.Secret, cfg.JWT.Issuer, raffletypes.PlayerID(player), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
