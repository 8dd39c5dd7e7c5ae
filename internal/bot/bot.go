package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/chorus/internal/pipeline"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// handleTimeout bounds the work spent on one gateway event.
const handleTimeout = 2 * time.Minute

// Handler is the message pipeline driven by the bot.
type Handler interface {
	Handle(ctx context.Context, msg *pipeline.Message) (*pipeline.Result, error)
	React(ctx context.Context, ref string, positive bool) error
}

// Bot connects the pipeline to the Discord gateway.
type Bot struct {
	client    bot.Client
	handler   Handler
	reactions *Reactions
	selfID    snowflake.ID
	pool      *pool.Pool
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
}

// New creates the Discord client. The persona ID is derived from the token,
// so it is known before the gateway opens.
func New(token string, reactions *Reactions, maxHandlers int, logger *zap.Logger) (*Bot, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		reactions: reactions,
		pool:      pool.New().WithMaxGoroutines(max(maxHandlers, 1)),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.Named("bot"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:      b.handleMessageCreate,
			OnGuildMessageReactionAdd: b.handleReactionAdd,
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client
	b.selfID = client.ApplicationID()

	return b, nil
}

// SetHandler attaches the pipeline. It must be called before Start.
func (b *Bot) SetHandler(handler Handler) {
	b.handler = handler
}

// Sender returns a sender that replies through this client.
func (b *Bot) Sender() *Sender {
	return NewSender(b.client.Rest())
}

// SelfID returns the persona user ID.
func (b *Bot) SelfID() string {
	return b.selfID.String()
}

// Start opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot", zap.String("self_id", b.selfID.String()))
	return b.client.OpenGateway(ctx)
}

// Close stops the gateway and waits for in-flight messages.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
	b.pool.Wait()
	b.cancel()
}

// handleMessageCreate queues guild messages from humans.
func (b *Bot) handleMessageCreate(event *events.GuildMessageCreate) {
	if event.Message.Author.Bot {
		return
	}

	msg := toMessage(event.Message, event.GuildID, b.selfID)

	b.pool.Go(func() {
		ctx, cancel := context.WithTimeout(b.ctx, handleTimeout)
		defer cancel()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in message handler", zap.Any("panic", r), zap.String("ref", msg.Ref))
			}
		}()

		result, err := b.handler.Handle(ctx, msg)
		if err != nil {
			b.logger.Error("Failed to handle message",
				zap.String("ref", msg.Ref),
				zap.String("channel", msg.ChannelID),
				zap.Error(err))
		}

		if result != nil {
			b.logger.Debug("Message handled",
				zap.String("ref", msg.Ref),
				zap.String("stage", string(result.Stage)),
				zap.String("reason", result.Decision.ReasonCode()),
				zap.Duration("duration", time.Since(start)))
		}
	})
}

// handleReactionAdd forwards feedback emoji on the persona's own replies.
func (b *Bot) handleReactionAdd(event *events.GuildMessageReactionAdd) {
	if event.UserID == b.selfID || event.Member.User.Bot {
		return
	}

	if !isOwnMessage(event.MessageAuthorID, b.selfID) {
		return
	}

	positive, ok := b.reactions.Classify(emojiName(event.Emoji))
	if !ok {
		return
	}

	ref := event.MessageID.String()

	b.pool.Go(func() {
		ctx, cancel := context.WithTimeout(b.ctx, handleTimeout)
		defer cancel()

		if err := b.handler.React(ctx, ref, positive); err != nil {
			b.logger.Error("Failed to apply reaction", zap.String("ref", ref), zap.Error(err))
		}
	})
}

// isOwnMessage reports whether a reacted message was sent by the persona.
// Gateways that omit the author defer the check to the feedback store.
func isOwnMessage(authorID *snowflake.ID, selfID snowflake.ID) bool {
	return authorID == nil || *authorID == selfID
}

// toMessage converts a gateway message for the pipeline.
func toMessage(m discord.Message, guildID, selfID snowflake.ID) *pipeline.Message {
	msg := &pipeline.Message{
		Ref:         m.ID.String(),
		CommunityID: guildID.String(),
		ChannelID:   m.ChannelID.String(),
		AuthorID:    m.Author.ID.String(),
		AuthorName:  displayName(m),
		Content:     m.Content,
		CreatedAt:   m.CreatedAt.UTC(),
	}

	for _, user := range m.Mentions {
		if user.ID == selfID {
			msg.MentionsTarget = true
			break
		}
	}

	if m.MessageReference != nil && m.MessageReference.MessageID != nil {
		msg.ReplyToRef = m.MessageReference.MessageID.String()
	}

	if m.ReferencedMessage != nil && m.ReferencedMessage.Author.ID == selfID {
		msg.IsReplyToTarget = true
	}

	return msg
}

func displayName(m discord.Message) string {
	if m.Member != nil && m.Member.Nick != nil && *m.Member.Nick != "" {
		return *m.Member.Nick
	}

	return m.Author.EffectiveName()
}

func emojiName(emoji discord.PartialEmoji) string {
	if emoji.Name == nil {
		return ""
	}

	return *emoji.Name
}
