package commands

import (
	"errors"
	"io"
	"os"

	"github.com/robalyx/chorus/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired      = errors.New("NAME argument required")
	ErrCommunityRequired = errors.New("--community flag required")
	ErrInvalidLimit      = errors.New("--limit must be positive")
	ErrUserRequired      = errors.New("--user flag required")
	ErrRefRequired       = errors.New("--ref flag required")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Logger   *zap.Logger
	// Output receives command listings. Defaults to stdout.
	Output io.Writer
}

func (d *CLIDependencies) out() io.Writer {
	if d.Output == nil {
		return os.Stdout
	}

	return d.Output
}
