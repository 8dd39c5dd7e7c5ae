package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/chorus/internal/pipeline"
)

// Sender posts replies through the Discord REST API.
type Sender struct {
	rest rest.Rest
}

// NewSender creates a sender.
func NewSender(client rest.Rest) *Sender {
	return &Sender{rest: client}
}

// Send replies to the trigger message without pinging its author.
// Every failure wraps pipeline.ErrDelivery.
func (s *Sender) Send(ctx context.Context, channelID, replyToRef, text string) (string, error) {
	channel, err := snowflake.Parse(channelID)
	if err != nil {
		return "", fmt.Errorf("%w: invalid channel id %q: %w", pipeline.ErrDelivery, channelID, err)
	}

	create := newReply(channel, replyToRef, text)

	message, err := s.rest.CreateMessage(channel, create, rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %w", pipeline.ErrDelivery, err)
	}

	return message.ID.String(), nil
}

// newReply builds the message payload for a reply.
func newReply(channel snowflake.ID, replyToRef, text string) discord.MessageCreate {
	create := discord.MessageCreate{
		Content: text,
		AllowedMentions: &discord.AllowedMentions{
			Parse:       []discord.AllowedMentionType{},
			RepliedUser: false,
		},
	}

	if ref, err := snowflake.Parse(replyToRef); err == nil {
		create.MessageReference = &discord.MessageReference{
			MessageID: &ref,
			ChannelID: &channel,
		}
	}

	return create
}
