package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/robalyx/chorus/internal/database/types"
	"github.com/urfave/cli/v3"
)

// MemberCommands returns commands that inspect what the persona knows.
func MemberCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "profile",
			Usage: "Print the profile and interaction summary of a member",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "user",
					Usage:    "User ID",
					Required: true,
				},
			},
			Action: handleProfile(deps),
		},
		{
			Name:  "message",
			Usage: "Print a reply the persona sent",
			Description: `Resolve a message ref the same way reactions do. Only replies
sent by the persona are found.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "ref",
					Usage:    "Message ID",
					Required: true,
				},
			},
			Action: handleMessage(deps),
		},
	}
}

func handleProfile(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		userID := c.String("user")
		if userID == "" {
			return ErrUserRequired
		}

		users := deps.DB.Model().User()

		profile, err := users.GetProfile(ctx, userID)
		if err != nil {
			return err
		}

		if profile == nil {
			fmt.Fprintf(deps.out(), "Member %s has not been seen\n", userID)
			return nil
		}

		summary, err := users.InteractionSummary(ctx, userID)
		if err != nil {
			return err
		}

		printProfile(deps.out(), profile, summary)

		return nil
	}
}

func handleMessage(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ref := c.String("ref")
		if ref == "" {
			return ErrRefRequired
		}

		content, ok, err := deps.DB.Model().Message().BotMessageContent(ctx, ref)
		if err != nil {
			return err
		}

		if !ok {
			fmt.Fprintf(deps.out(), "No persona reply with ref %s\n", ref)
			return nil
		}

		fmt.Fprintln(deps.out(), content)

		return nil
	}
}

func printProfile(w io.Writer, profile *types.UserProfile, summary *types.InteractionSummary) {
	fmt.Fprintf(w, "%s (%s)\n", profile.Username, profile.UserID)
	fmt.Fprintf(w, "  interactions: %d\n", profile.InteractionCount)
	fmt.Fprintf(w, "  first seen:   %s\n", profile.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  last seen:    %s\n", profile.LastSeenAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  messages:     %d\n", summary.TotalMessages)
	fmt.Fprintf(w, "  bot replies:  %d\n", summary.BotInteractions)

	for _, topic := range summary.TopTopics {
		fmt.Fprintf(w, "  topic %s x%d\n", topic.Topic, topic.Frequency)
	}
}
