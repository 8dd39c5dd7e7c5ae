package gate

import (
	"context"
	"time"

	"github.com/robalyx/chorus/internal/intent"
	"go.uber.org/zap"
)

// Reason is a machine-readable code explaining a Decision.
type Reason string

const (
	ReasonSelf             Reason = "self"
	ReasonOwner            Reason = "owner"
	ReasonUnconfigured     Reason = "unconfigured"
	ReasonIgnoredChannel   Reason = "ignored_channel"
	ReasonInactiveChannel  Reason = "inactive_channel"
	ReasonMention          Reason = "mention"
	ReasonReply            Reason = "reply"
	ReasonRateLimited      Reason = "rate_limited"
	ReasonCooldown         Reason = "cooldown"
	ReasonQuestionDetected Reason = "question_detected"
	ReasonModelDecision    Reason = "model_decision"
	ReasonNotRelevant      Reason = "not_relevant"
	ReasonStateUnavailable Reason = "state_unavailable"
)

// Decision is the per-message verdict of the gate. It is never persisted.
type Decision struct {
	Respond bool
	Reason  Reason
	// Detail qualifies model decisions with the classifier reason.
	Detail  string
	Urgency intent.Urgency
}

// ReasonCode renders the reason with its detail, e.g. "model_decision:parse_error".
func (d Decision) ReasonCode() string {
	if d.Detail == "" {
		return string(d.Reason)
	}

	return string(d.Reason) + ":" + d.Detail
}

// Request is the normalized input of Decide.
type Request struct {
	Text            string
	CommunityID     string
	ChannelID       string
	SenderID        string
	MentionsTarget  bool
	IsReplyToTarget bool
	// DailyCap overrides the community cap when positive.
	DailyCap int
	// Context loads recent channel messages for the remote classifier.
	Context intent.ContextFunc
}

// Classifier is the two-stage intent classifier used by the gate.
type Classifier interface {
	Screen(text string) intent.Outcome
	Resolve(ctx context.Context, community, text string, loadContext intent.ContextFunc) intent.Judgment
}

// Gate decides whether the persona may reply to a message.
type Gate struct {
	selfID     string
	ownerID    string
	rules      RuleBook
	ledger     Ledger
	classifier Classifier
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New creates a gate for the persona identified by selfID.
func New(
	selfID, ownerID string, rules RuleBook, ledger Ledger, classifier Classifier, logger *zap.Logger, opts ...Option,
) *Gate {
	g := &Gate{
		selfID:     selfID,
		ownerID:    ownerID,
		rules:      rules,
		ledger:     ledger,
		classifier: classifier,
		now:        time.Now,
		logger:     logger.Named("gate"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// SetSelfID sets the persona ID once the transport knows it.
func (g *Gate) SetSelfID(selfID string) {
	g.selfID = selfID
}

// Decide evaluates the rules in order. The first matching rule wins.
func (g *Gate) Decide(ctx context.Context, req Request) Decision {
	decision := g.decide(ctx, req)

	g.logger.Debug("Gate decision",
		zap.String("community", req.CommunityID),
		zap.String("channel", req.ChannelID),
		zap.String("sender", req.SenderID),
		zap.Bool("respond", decision.Respond),
		zap.String("reason", decision.ReasonCode()))

	return decision
}

func (g *Gate) decide(ctx context.Context, req Request) Decision {
	if req.SenderID == g.selfID {
		return Decision{Reason: ReasonSelf}
	}

	if g.ownerID != "" && req.SenderID == g.ownerID {
		return Decision{Respond: true, Reason: ReasonOwner, Urgency: intent.UrgencyHigh}
	}

	rules, ok := g.rules.Lookup(req.CommunityID)
	if !ok {
		return Decision{Reason: ReasonUnconfigured}
	}

	if rules.Ignores(req.ChannelID) {
		return Decision{Reason: ReasonIgnoredChannel}
	}

	if !rules.Allows(req.ChannelID) {
		return Decision{Reason: ReasonInactiveChannel}
	}

	if req.MentionsTarget && rules.RespondIfMentioned {
		return Decision{Respond: true, Reason: ReasonMention, Urgency: intent.UrgencyHigh}
	}

	if req.IsReplyToTarget {
		return Decision{Respond: true, Reason: ReasonReply, Urgency: intent.UrgencyHigh}
	}

	now := g.now()

	dailyCap := rules.DailyCap
	if req.DailyCap > 0 {
		dailyCap = req.DailyCap
	}

	sends, err := g.ledger.SendsInWindow(ctx, req.CommunityID, now)
	if err != nil {
		g.logger.Error("Failed to read send window", zap.String("community", req.CommunityID), zap.Error(err))
		return Decision{Reason: ReasonStateUnavailable}
	}

	if sends >= dailyCap {
		return Decision{Reason: ReasonRateLimited}
	}

	last, seen, err := g.ledger.LastSend(ctx, req.ChannelID)
	if err != nil {
		g.logger.Error("Failed to read channel cooldown", zap.String("channel", req.ChannelID), zap.Error(err))
		return Decision{Reason: ReasonStateUnavailable}
	}

	if seen && now.Sub(last) < rules.Cooldown {
		return Decision{Reason: ReasonCooldown}
	}

	if outcome := g.classifier.Screen(req.Text); outcome.IsDecided() {
		judgment := outcome.Judgment()
		return Decision{Respond: judgment.Respond, Reason: ReasonQuestionDetected, Urgency: judgment.Urgency}
	}

	if rules.RespondIfTopicRelevant {
		judgment := g.classifier.Resolve(ctx, rules.CommunityName, req.Text, req.Context)
		return Decision{
			Respond: judgment.Respond,
			Reason:  ReasonModelDecision,
			Detail:  judgment.Reason,
			Urgency: judgment.Urgency,
		}
	}

	return Decision{Reason: ReasonNotRelevant}
}

// Record consumes reply budget for a delivered reply. Deciding to respond
// does not advance any state on its own.
func (g *Gate) Record(ctx context.Context, communityID, channelID string) error {
	return g.ledger.Record(ctx, communityID, channelID, g.now())
}
