package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/robalyx/chorus/internal/trainer"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// TrainingDir is where DiscordChatExporter JSON files are read from.
const TrainingDir = "data/training"

// ErrNoMessages indicates that no export contained messages of the user.
var ErrNoMessages = errors.New("no messages found for user")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "train",
		Usage: "Draft a persona from exported chats",
		Description: `Reads DiscordChatExporter JSON exports, keeps the messages of one user
and writes a [persona] block for bot.toml that imitates their style.

Examples:
  train --user 123456789 --name Mia --description "Community manager"
  train --user 123456789 --name Mia --dir exports --output persona.toml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User ID whose messages are analysed",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Persona name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "One-line persona description",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory with JSON exports",
				Value: TrainingDir,
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "File to write the persona block to (stdout when empty)",
			},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // -

			return train(c, logger)
		},
	}

	return app.Run(context.Background(), os.Args)
}

func train(c *cli.Command, logger *zap.Logger) error {
	texts, err := trainer.LoadDir(c.String("dir"), c.String("user"), logger)
	if err != nil {
		return err
	}

	if len(texts) == 0 {
		return fmt.Errorf("%w %s", ErrNoMessages, c.String("user"))
	}

	style := trainer.Analyze(texts)
	persona := trainer.BuildPersona(style, c.String("name"), c.String("description"))

	out, err := trainer.Render(style, persona)
	if err != nil {
		return err
	}

	logger.Info("Analysed writing style",
		zap.Int("messages", style.MessageCount),
		zap.Int("average_length", style.AverageLength),
		zap.String("tone", persona.Tone),
		zap.String("emojis", strings.Join(persona.Emojis, " ")),
		zap.Strings("fillers", persona.Fillers))

	path := c.String("output")
	if path == "" {
		_, err = os.Stdout.Write(out)
		return err
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write persona: %w", err)
	}

	logger.Info("Persona written", zap.String("path", path))

	return nil
}
