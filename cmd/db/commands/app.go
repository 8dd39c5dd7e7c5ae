package commands

import (
	"slices"

	"github.com/urfave/cli/v3"
)

// NewApp assembles the db tool.
func NewApp(deps *CLIDependencies) *cli.Command {
	return &cli.Command{
		Name:     "db",
		Usage:    "Database management tool",
		Commands: slices.Concat(MigrationCommands(deps), FeedbackCommands(deps), MemberCommands(deps)),
	}
}
