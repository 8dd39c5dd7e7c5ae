package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/robalyx/chorus/internal/database/types"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// tableCount is the row count of one persona table.
type tableCount struct {
	Table string
	Rows  int
}

// domainTables are the tables created by the persona schema, in print order.
var domainTables = []struct {
	name  string
	model any
}{
	{"messages", (*types.Message)(nil)},
	{"sent_responses", (*types.SentResponse)(nil)},
	{"user_profiles", (*types.UserProfile)(nil)},
	{"user_topics", (*types.UserTopic)(nil)},
}

// MigrationCommands returns all migration-related commands.
func MigrationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "init",
			Usage:  "Create the migration bookkeeping tables",
			Action: handleInit(deps),
		},
		{
			Name:   "migrate",
			Usage:  "Apply pending schema migrations",
			Action: handleMigrate(deps),
		},
		{
			Name:   "rollback",
			Usage:  "Revert the most recent migration group",
			Action: handleRollback(deps),
		},
		{
			Name:   "status",
			Usage:  "Print the schema version, pending migrations and table sizes",
			Action: handleStatus(deps),
		},
		{
			Name:      "create",
			Usage:     "Scaffold a new Go migration",
			ArgsUsage: "NAME",
			Action:    handleCreate(deps),
		},
	}
}

func handleInit(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Init(ctx); err != nil {
			return err
		}

		deps.Logger.Info("Migration tables ready")

		return nil
	}
}

// handleMigrate applies pending migrations under the migrator lock.
func handleMigrate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Init(ctx); err != nil {
			return err
		}

		if err := deps.Migrator.Lock(ctx); err != nil {
			return err
		}
		defer deps.Migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := deps.Migrator.Migrate(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			deps.Logger.Info("Schema is up to date")
			return nil
		}

		deps.Logger.Info("Applied migrations",
			zap.String("group", group.String()),
			zap.Int("count", len(group.Migrations)))

		return nil
	}
}

func handleRollback(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Lock(ctx); err != nil {
			return err
		}
		defer deps.Migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := deps.Migrator.Rollback(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			deps.Logger.Info("Nothing to roll back")
			return nil
		}

		deps.Logger.Info("Rolled back migrations", zap.String("group", group.String()))

		return nil
	}
}

// handleStatus prints every migration and, once the schema exists, the size
// of each persona table.
func handleStatus(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Init(ctx); err != nil {
			return err
		}

		ms, err := deps.Migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}

		var counts []tableCount
		if len(ms.Applied()) > 0 {
			for _, table := range domainTables {
				rows, err := deps.DB.DB().NewSelect().Model(table.model).Count(ctx)
				if err != nil {
					return fmt.Errorf("failed to count %s: %w", table.name, err)
				}

				counts = append(counts, tableCount{Table: table.name, Rows: rows})
			}
		}

		printStatus(deps.out(), ms, counts)

		return nil
	}
}

func printStatus(w io.Writer, ms migrate.MigrationSlice, counts []tableCount) {
	last := ms.LastGroup()
	if last.IsZero() {
		fmt.Fprintln(w, "Schema version: none")
	} else {
		fmt.Fprintf(w, "Schema version: %s (group %d)\n", last.Migrations[len(last.Migrations)-1].String(), last.ID)
	}

	for _, m := range ms {
		state := "pending"
		if m.IsApplied() {
			state = "applied"
		}

		fmt.Fprintf(w, "  [%s] %s\n", state, m.String())
	}

	if len(ms.Unapplied()) > 0 {
		fmt.Fprintf(w, "%d migration(s) pending, run \"db migrate\"\n", len(ms.Unapplied()))
	}

	for _, c := range counts {
		fmt.Fprintf(w, "  %-15s %d rows\n", c.Table, c.Rows)
	}
}

func handleCreate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrNameRequired
		}

		mf, err := deps.Migrator.CreateGoMigration(ctx, c.Args().First())
		if err != nil {
			return err
		}

		deps.Logger.Info("Created migration file", zap.String("name", mf.Name), zap.String("path", mf.Path))

		return nil
	}
}
