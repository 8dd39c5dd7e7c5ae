package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrMalformedOutput indicates that the remote classifier answered with
// something that could not be parsed into a Judgment.
var ErrMalformedOutput = errors.New("malformed classifier output")

// Reasons reported by the classifier when the remote call fails.
const (
	ReasonParseError  = "parse_error"
	ReasonRemoteError = "remote_error"
	ReasonContext     = "context_unavailable"
)

// Urgency is how quickly a message deserves an answer.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// ParseUrgency maps free text to an Urgency, defaulting to low.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyMedium:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// Line is one message of recent channel context.
type Line struct {
	Speaker string
	Text    string
}

// String renders the line the way the classifier prompt expects.
func (l Line) String() string {
	return fmt.Sprintf("[%s]: %s", l.Speaker, l.Text)
}

// Judgment is the verdict on whether a message deserves a reply.
type Judgment struct {
	Respond bool
	Reason  string
	Urgency Urgency
}

// Outcome is the result of the free heuristic stage. A Decided outcome
// carries a final Judgment; a Deferred outcome needs the remote stage.
type Outcome struct {
	decided  bool
	judgment Judgment
}

// Decided wraps a final judgment.
func Decided(j Judgment) Outcome {
	return Outcome{decided: true, judgment: j}
}

// Deferred signals that the heuristics were inconclusive.
func Deferred() Outcome {
	return Outcome{}
}

// IsDecided reports whether the outcome is final.
func (o Outcome) IsDecided() bool {
	return o.decided
}

// Judgment returns the final judgment. It is the zero value for deferred outcomes.
func (o Outcome) Judgment() Judgment {
	return o.judgment
}

// Remote classifies a message using a language model. Community is the
// display name of the server the message was posted in.
type Remote interface {
	ClassifyIntent(ctx context.Context, community, text string, recent []Line) (Judgment, error)
}

// ContextFunc loads the recent channel context for the remote stage.
// It is only invoked once the heuristic stage defers.
type ContextFunc func(ctx context.Context) ([]Line, error)

// Classifier runs the heuristic stage, then the remote stage when needed.
type Classifier struct {
	heuristic *Heuristic
	remote    Remote
	logger    *zap.Logger
}

// NewClassifier creates a classifier. A nil remote makes every deferred
// message a negative judgment.
func NewClassifier(heuristic *Heuristic, remote Remote, logger *zap.Logger) *Classifier {
	return &Classifier{
		heuristic: heuristic,
		remote:    remote,
		logger:    logger.Named("intent"),
	}
}

// Screen runs only the heuristic stage and never performs a remote call.
func (c *Classifier) Screen(text string) Outcome {
	if c.heuristic.IsQuestion(text) {
		return Decided(Judgment{Respond: true, Reason: "question_detected", Urgency: UrgencyMedium})
	}

	return Deferred()
}

// Resolve asks the remote classifier. Every failure degrades to a negative
// judgment whose reason names the failure.
func (c *Classifier) Resolve(ctx context.Context, community, text string, loadContext ContextFunc) Judgment {
	if c.remote == nil {
		return Judgment{Respond: false, Reason: ReasonRemoteError, Urgency: UrgencyLow}
	}

	var recent []Line
	if loadContext != nil {
		lines, err := loadContext(ctx)
		if err != nil {
			c.logger.Warn("Failed to load classifier context", zap.Error(err))
			return Judgment{Respond: false, Reason: ReasonContext, Urgency: UrgencyLow}
		}
		recent = lines
	}

	judgment, err := c.remote.ClassifyIntent(ctx, community, text, recent)
	switch {
	case errors.Is(err, ErrMalformedOutput):
		c.logger.Debug("Classifier output could not be parsed", zap.Error(err))
		return Judgment{Respond: false, Reason: ReasonParseError, Urgency: UrgencyLow}
	case err != nil:
		c.logger.Warn("Remote classification failed", zap.Error(err))
		return Judgment{Respond: false, Reason: ReasonRemoteError, Urgency: UrgencyLow}
	}

	if judgment.Urgency == "" {
		judgment.Urgency = UrgencyLow
	}

	return judgment
}
