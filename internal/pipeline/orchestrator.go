package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/chorus/internal/ai"
	"github.com/robalyx/chorus/internal/database/types"
	"github.com/robalyx/chorus/internal/gate"
	"github.com/robalyx/chorus/internal/intent"
	"github.com/robalyx/chorus/internal/persona"
	"github.com/robalyx/chorus/internal/quality"
	"github.com/robalyx/chorus/internal/setup/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrDelivery indicates the transport could not deliver a reply.
var ErrDelivery = errors.New("failed to deliver reply")

const (
	tracerName = "github.com/robalyx/chorus/internal/pipeline"

	// commitTimeout bounds the bookkeeping after a reply was delivered.
	commitTimeout = 10 * time.Second
)

// MessageStore persists the channel message log.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *types.Message) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]*types.Message, error)
	RecentContext(ctx context.Context, channelID string, since time.Time, limit int) ([]*types.Message, error)
}

// UserStore tracks member profiles and topics.
type UserStore interface {
	TouchProfile(ctx context.Context, userID, username string, at time.Time) error
	TrackTopic(ctx context.Context, userID, username, topic string, at time.Time) error
	InteractionSummary(ctx context.Context, userID string) (*types.InteractionSummary, error)
}

// FeedbackStore scores delivered replies.
type FeedbackStore interface {
	RecordSent(ctx context.Context, trigger, response, communityID, channelID string) error
	ApplyReaction(ctx context.Context, ref string, positive bool) (int64, error)
	TopExemplars(ctx context.Context, communityID string, limit int) ([]*types.SentResponse, error)
}

// Gate decides eligibility and consumes reply budget.
type Gate interface {
	Decide(ctx context.Context, req gate.Request) gate.Decision
	Record(ctx context.Context, communityID, channelID string) error
}

// Generator drafts a reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, history []persona.Turn, systemPrompt, userContext string) (string, error)
}

// QualityFilter screens a drafted reply.
type QualityFilter interface {
	Filter(ctx context.Context, text string) quality.Verdict
}

// Sender delivers a reply to the trigger message and returns the new message ref.
// Failures must wrap ErrDelivery.
type Sender interface {
	Send(ctx context.Context, channelID, replyToRef, text string) (string, error)
}

// Communities looks up the prompt context of a community.
type Communities interface {
	Community(id string) (*config.Community, bool)
}

// Message is an inbound chat message as seen by the transport.
type Message struct {
	Ref             string
	CommunityID     string
	ChannelID       string
	AuthorID        string
	AuthorName      string
	Content         string
	ReplyToRef      string
	MentionsTarget  bool
	IsReplyToTarget bool
	CreatedAt       time.Time
}

// Stage names where handling of a message stopped.
type Stage string

const (
	StageGated          Stage = "gated"
	StageEmptyHistory   Stage = "empty_history"
	StageNoReply        Stage = "no_reply"
	StageGenerateFailed Stage = "generate_failed"
	StageRejected       Stage = "rejected"
	StageDeliveryFailed Stage = "delivery_failed"
	StageSent           Stage = "sent"
)

// Result describes what happened to one message.
type Result struct {
	Stage    Stage
	Decision gate.Decision
	Verdict  quality.Verdict
	// SentRef is the ref of the delivered reply, if any.
	SentRef string
}

// Settings tunes history sizes for one persona.
type Settings struct {
	RecentHistory        int
	ClassifierWindow     time.Duration
	ClassifierWindowSize int
	ExemplarLimit        int
}

// SettingsFromConfig reads the settings from the bot config.
func SettingsFromConfig(cfg *config.BotConfig) Settings {
	return Settings{
		RecentHistory:        cfg.RecentHistory,
		ClassifierWindow:     time.Duration(cfg.ClassifierWindowMinutes) * time.Minute,
		ClassifierWindowSize: cfg.ClassifierWindowSize,
		ExemplarLimit:        cfg.ExemplarLimit,
	}
}

// Dependencies groups the collaborators of an Orchestrator.
type Dependencies struct {
	Messages    MessageStore
	Users       UserStore
	Feedback    FeedbackStore
	Gate        Gate
	Generator   Generator
	Filter      QualityFilter
	Sender      Sender
	Prompts     *persona.Builder
	Topics      *persona.TopicDetector
	Communities Communities
}

// Orchestrator runs a message through gate, generation, filtering, delivery
// and bookkeeping. It is safe for concurrent use.
type Orchestrator struct {
	deps     Dependencies
	settings Settings
	selfID   string
	now      func() time.Time
	tracer   trace.Tracer
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator.
func New(deps Dependencies, settings Settings, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:     deps,
		settings: settings,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.Named("pipeline"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// SetSelfID sets the persona user ID. It must be called before handling starts.
func (o *Orchestrator) SetSelfID(selfID string) {
	o.selfID = selfID
}

// Handle processes one inbound message. Errors are bookkeeping failures; the
// sender never sees them.
func (o *Orchestrator) Handle(ctx context.Context, msg *Message) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.Handle", trace.WithAttributes(
		attribute.String("community", msg.CommunityID),
		attribute.String("channel", msg.ChannelID),
	))
	defer span.End()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = o.now()
	}

	o.observe(ctx, msg)

	decision := o.decide(ctx, msg)
	result := &Result{Stage: StageGated, Decision: decision}
	span.SetAttributes(attribute.String("decision", decision.ReasonCode()))

	if !decision.Respond {
		return result, nil
	}

	history, err := o.deps.Messages.RecentMessages(ctx, msg.ChannelID, o.settings.RecentHistory)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("failed to load history: %w", err)
	}

	turns := persona.FormatConversation(history, o.selfID)
	if len(turns) == 0 {
		result.Stage = StageEmptyHistory
		return result, nil
	}

	reply, err := o.generate(ctx, msg, turns)
	switch {
	case errors.Is(err, ai.ErrNoRespond):
		result.Stage = StageNoReply
		return result, nil
	case err != nil:
		o.logger.Warn("Generation failed",
			zap.String("community", msg.CommunityID),
			zap.String("channel", msg.ChannelID),
			zap.Error(err))

		result.Stage = StageGenerateFailed

		return result, nil
	}

	result.Verdict = o.filter(ctx, reply)
	if !result.Verdict.Accepted {
		result.Stage = StageRejected
		return result, nil
	}

	sentRef, err := o.deliver(ctx, msg, result.Verdict.Text)
	if err != nil {
		o.logger.Error("Failed to deliver reply",
			zap.String("community", msg.CommunityID),
			zap.String("channel", msg.ChannelID),
			zap.String("reply_to", msg.Ref),
			zap.Error(err))

		result.Stage = StageDeliveryFailed

		return result, nil
	}

	result.Stage = StageSent
	result.SentRef = sentRef

	return result, o.commit(ctx, msg, sentRef, result.Verdict.Text)
}

// React applies a feedback reaction to a delivered reply.
func (o *Orchestrator) React(ctx context.Context, ref string, positive bool) error {
	updated, err := o.deps.Feedback.ApplyReaction(ctx, ref, positive)
	if err != nil {
		return fmt.Errorf("failed to apply reaction: %w", err)
	}

	o.logger.Debug("Applied reaction",
		zap.String("ref", ref),
		zap.Bool("positive", positive),
		zap.Int64("updated", updated))

	return nil
}

// observe logs the message and updates the author profile. Failures here
// never block a reply.
func (o *Orchestrator) observe(ctx context.Context, msg *Message) {
	err := o.deps.Messages.SaveMessage(ctx, &types.Message{
		MessageRef:  msg.Ref,
		CommunityID: msg.CommunityID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.AuthorID,
		AuthorName:  msg.AuthorName,
		Content:     msg.Content,
		ReplyToRef:  msg.ReplyToRef,
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		o.logger.Error("Failed to save message", zap.String("ref", msg.Ref), zap.Error(err))
	}

	if err := o.deps.Users.TouchProfile(ctx, msg.AuthorID, msg.AuthorName, msg.CreatedAt); err != nil {
		o.logger.Error("Failed to update user profile", zap.String("user", msg.AuthorID), zap.Error(err))
	}

	if o.deps.Topics == nil {
		return
	}

	for _, topic := range o.deps.Topics.Detect(msg.Content) {
		if err := o.deps.Users.TrackTopic(ctx, msg.AuthorID, msg.AuthorName, topic, msg.CreatedAt); err != nil {
			o.logger.Error("Failed to track topic",
				zap.String("user", msg.AuthorID),
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}

func (o *Orchestrator) decide(ctx context.Context, msg *Message) gate.Decision {
	ctx, span := o.tracer.Start(ctx, "pipeline.decide")
	defer span.End()

	return o.deps.Gate.Decide(ctx, gate.Request{
		Text:            msg.Content,
		CommunityID:     msg.CommunityID,
		ChannelID:       msg.ChannelID,
		SenderID:        msg.AuthorID,
		MentionsTarget:  msg.MentionsTarget,
		IsReplyToTarget: msg.IsReplyToTarget,
		Context:         o.contextLoader(msg),
	})
}

// contextLoader returns the classifier window of the channel, excluding the
// message being classified.
func (o *Orchestrator) contextLoader(msg *Message) intent.ContextFunc {
	return func(ctx context.Context) ([]intent.Line, error) {
		since := o.now().Add(-o.settings.ClassifierWindow)

		messages, err := o.deps.Messages.RecentContext(ctx, msg.ChannelID, since, o.settings.ClassifierWindowSize+1)
		if err != nil {
			return nil, err
		}

		lines := make([]intent.Line, 0, len(messages))
		for _, m := range messages {
			if m.MessageRef == msg.Ref {
				continue
			}
			lines = append(lines, intent.Line{Speaker: m.Speaker(), Text: m.Content})
		}

		if extra := len(lines) - o.settings.ClassifierWindowSize; extra > 0 {
			lines = lines[extra:]
		}

		return lines, nil
	}
}

func (o *Orchestrator) generate(ctx context.Context, msg *Message, turns []persona.Turn) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.generate")
	defer span.End()

	community, _ := o.deps.Communities.Community(msg.CommunityID)
	systemPrompt := o.deps.Prompts.SystemPrompt(community)

	if o.settings.ExemplarLimit > 0 {
		exemplars, err := o.deps.Feedback.TopExemplars(ctx, msg.CommunityID, o.settings.ExemplarLimit)
		if err != nil {
			o.logger.Warn("Failed to load exemplars", zap.String("community", msg.CommunityID), zap.Error(err))
		}
		systemPrompt = persona.WithExemplars(systemPrompt, exemplars)
	}

	summary, err := o.deps.Users.InteractionSummary(ctx, msg.AuthorID)
	if err != nil {
		o.logger.Warn("Failed to load interaction summary", zap.String("user", msg.AuthorID), zap.Error(err))
	}

	reply, err := o.deps.Generator.Generate(ctx, turns, systemPrompt, persona.UserContext(msg.AuthorName, summary))
	if err != nil && !errors.Is(err, ai.ErrNoRespond) {
		span.SetStatus(codes.Error, err.Error())
	}

	return reply, err
}

func (o *Orchestrator) filter(ctx context.Context, reply string) quality.Verdict {
	ctx, span := o.tracer.Start(ctx, "pipeline.filter")
	defer span.End()

	verdict := o.deps.Filter.Filter(ctx, reply)
	span.SetAttributes(
		attribute.Bool("accepted", verdict.Accepted),
		attribute.Bool("truncated", verdict.Truncated),
	)

	return verdict
}

func (o *Orchestrator) deliver(ctx context.Context, msg *Message, text string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.deliver")
	defer span.End()

	ref, err := o.deps.Sender.Send(ctx, msg.ChannelID, msg.Ref, text)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return ref, nil
}

// commit consumes reply budget and persists a delivered reply. The reply
// is already visible, so the bookkeeping outlives the handler deadline.
func (o *Orchestrator) commit(ctx context.Context, msg *Message, sentRef, text string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	var errs []error

	if err := o.deps.Gate.Record(ctx, msg.CommunityID, msg.ChannelID); err != nil {
		errs = append(errs, fmt.Errorf("failed to record send: %w", err))
	}

	err := o.deps.Messages.SaveMessage(ctx, &types.Message{
		MessageRef:    sentRef,
		CommunityID:   msg.CommunityID,
		ChannelID:     msg.ChannelID,
		AuthorID:      o.selfID,
		AuthorName:    o.deps.Prompts.Name(),
		Content:       text,
		IsBotResponse: true,
		ReplyToRef:    msg.Ref,
		CreatedAt:     o.now(),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to save reply: %w", err))
	}

	if err := o.deps.Feedback.RecordSent(ctx, msg.Content, text, msg.CommunityID, msg.ChannelID); err != nil {
		errs = append(errs, fmt.Errorf("failed to record sent response: %w", err))
	}

	o.logger.Info("Reply sent",
		zap.String("community", msg.CommunityID),
		zap.String("channel", msg.ChannelID),
		zap.String("ref", sentRef),
		zap.Int("length", len([]rune(text))))

	return errors.Join(errs...)
}
