package rafflemigrations

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations holds the raffle schema migrations.
var Migrations = migrate.NewMigrations()
