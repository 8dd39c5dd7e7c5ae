package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/robalyx/chorus/internal/database/types"
	"github.com/robalyx/chorus/pkg/utils"
	"github.com/urfave/cli/v3"
)

// previewLength caps printed message text.
const previewLength = 80

// FeedbackCommands returns commands that inspect scored replies.
func FeedbackCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "exemplars",
			Usage: "Print the best rated replies of a community",
			Description: `Print the replies that would currently be reused as tone references.

Examples:
  db exemplars --community 123456789          # Top 3 replies
  db exemplars --community 123456789 --limit 10`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "community",
					Usage:    "Community (guild) ID",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of replies to print",
					Value: 3,
				},
			},
			Action: handleExemplars(deps),
		},
		{
			Name:  "responses",
			Usage: "Print every scored reply sent in a channel",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "channel",
					Usage:    "Channel ID",
					Required: true,
				},
			},
			Action: handleResponses(deps),
		},
	}
}

func handleExemplars(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		community := c.String("community")
		if community == "" {
			return ErrCommunityRequired
		}

		limit := c.Int("limit")
		if limit <= 0 {
			return ErrInvalidLimit
		}

		exemplars, err := deps.DB.Model().Feedback().TopExemplars(ctx, community, int(limit))
		if err != nil {
			return fmt.Errorf("failed to load exemplars: %w", err)
		}

		printResponses(deps.out(), exemplars)

		return nil
	}
}

func handleResponses(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		responses, err := deps.DB.Model().Feedback().GetByChannel(ctx, c.String("channel"))
		if err != nil {
			return fmt.Errorf("failed to load responses: %w", err)
		}

		printResponses(deps.out(), responses)

		return nil
	}
}

func printResponses(w io.Writer, responses []*types.SentResponse) {
	if len(responses) == 0 {
		fmt.Fprintln(w, "No replies found")
		return
	}

	for i, r := range responses {
		fmt.Fprintf(w, "%d. score=%.2f +%d -%d sent=%s\n", i+1,
			r.QualityScore, r.PositiveReactions, r.NegativeReactions, r.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "   trigger:  %s\n", utils.TruncateRunes(r.TriggerContent, previewLength))
		fmt.Fprintf(w, "   response: %s\n", utils.TruncateRunes(r.ResponseContent, previewLength))
	}
}
