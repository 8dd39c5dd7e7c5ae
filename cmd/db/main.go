package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/chorus/cmd/db/commands"
	"github.com/robalyx/chorus/internal/database"
	"github.com/robalyx/chorus/internal/database/migrations"
	"github.com/robalyx/chorus/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	deps, err := setupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer deps.DB.Close()

	app := commands.NewApp(deps)

	return app.Run(ctx, os.Args)
}

// setupDependencies loads the config and opens the database without migrating it.
func setupDependencies(ctx context.Context) (*commands.CLIDependencies, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewConnection(ctx, &cfg.Common, logger, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &commands.CLIDependencies{
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Logger:   logger,
	}, nil
}
