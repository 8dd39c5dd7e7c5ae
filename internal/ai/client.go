package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bytedance/sonic"
	"github.com/robalyx/chorus/internal/intent"
	"github.com/robalyx/chorus/internal/persona"
	"github.com/robalyx/chorus/internal/setup/config"
	"github.com/robalyx/chorus/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	classifyTemperature = 0.2
	generateTemperature = 0.8
	classifyMaxTokens   = 100
	judgeMaxTokens      = 10
)

// intentResponse is the JSON shape returned by the classifier model.
type intentResponse struct {
	Respond *bool  `json:"respond"`
	Reason  string `json:"reason"`
	Urgency string `json:"urgency"`
}

// Client exposes the remote capabilities of the pipeline on top of a Provider.
// Calls are bounded by a semaphore and guarded by a circuit breaker. Nothing
// is retried.
type Client struct {
	provider    Provider
	cfg         *config.LLM
	personaName string
	sem         *semaphore.Weighted
	breaker     *gobreaker.CircuitBreaker
	timeout     time.Duration
	logger      *zap.Logger
}

// NewProvider creates the provider selected in the config.
func NewProvider(ctx context.Context, cfg *config.LLM) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey)
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// NewClient creates a client for the persona.
func NewClient(provider Provider, cfg *config.LLM, personaName string, logger *zap.Logger) *Client {
	logger = logger.Named("llm")

	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		provider:    provider,
		cfg:         cfg,
		personaName: personaName,
		sem:         semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
		breaker:     gobreaker.NewCircuitBreaker(settings),
		timeout:     time.Duration(cfg.RequestTimeout) * time.Millisecond,
		logger:      logger,
	}
}

// complete runs one bounded, time-limited request.
func (c *Client) complete(ctx context.Context, req *Request) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer c.sem.Release(1)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.provider.Complete(ctx, req)
	})
	if err != nil {
		c.logger.Warn("Model request failed",
			zap.String("task", req.Task.String()),
			zap.String("model", req.Model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))

		return "", err
	}

	c.logger.Debug("Model request completed",
		zap.String("task", req.Task.String()),
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(start)))

	return result.(string), nil
}

// ClassifyIntent implements intent.Remote.
func (c *Client) ClassifyIntent(
	ctx context.Context, community, text string, recent []intent.Line,
) (intent.Judgment, error) {
	if community == "" {
		community = defaultCommunityName
	}

	lines := make([]string, len(recent))
	for i, line := range recent {
		lines[i] = utils.CompressAllWhitespace(line.String())
	}

	prompt := fmt.Sprintf(IntentPrompt, c.personaName, community, strings.Join(lines, "\n"), utils.CompressAllWhitespace(text))

	output, err := c.complete(ctx, &Request{
		Task:        TaskClassify,
		Model:       c.cfg.ClassifyModel,
		Turns:       []persona.Turn{{Role: persona.RoleUser, Content: prompt}},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return intent.Judgment{}, err
	}

	return parseIntent(output)
}

// parseIntent decodes classifier JSON, tolerating a surrounding code fence.
func parseIntent(output string) (intent.Judgment, error) {
	output = stripCodeFence(output)

	var resp intentResponse
	if err := sonic.UnmarshalString(output, &resp); err != nil {
		return intent.Judgment{}, fmt.Errorf("%w: %w", intent.ErrMalformedOutput, err)
	}

	if resp.Respond == nil {
		return intent.Judgment{}, fmt.Errorf("%w: missing respond field", intent.ErrMalformedOutput)
	}

	return intent.Judgment{
		Respond: *resp.Respond,
		Reason:  strings.TrimSpace(resp.Reason),
		Urgency: intent.ParseUrgency(resp.Urgency),
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// JudgeNaturalness implements quality.Judge.
func (c *Client) JudgeNaturalness(ctx context.Context, text string) (bool, error) {
	output, err := c.complete(ctx, &Request{
		Task:      TaskJudge,
		Model:     c.cfg.JudgeModel,
		Turns:     []persona.Turn{{Role: persona.RoleUser, Content: fmt.Sprintf(JudgePrompt, text)}},
		MaxTokens: judgeMaxTokens,
	})
	if err != nil {
		return false, err
	}

	return isNaturalVerdict(output), nil
}

// isNaturalVerdict accepts only answers whose first word is the verdict.
func isNaturalVerdict(output string) bool {
	words := strings.FieldsFunc(strings.ToUpper(output), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	return len(words) > 0 && words[0] == NaturalVerdict
}

// Generate produces a reply for the conversation. It returns ErrNoRespond
// when the model prefers silence.
func (c *Client) Generate(
	ctx context.Context, history []persona.Turn, systemPrompt, userContext string,
) (string, error) {
	if len(history) == 0 {
		return "", ErrNoRespond
	}

	system := systemPrompt
	if userContext != "" {
		system += "\n" + userContext
	}

	output, err := c.complete(ctx, &Request{
		Task:        TaskGenerate,
		Model:       c.cfg.GenerateModel,
		System:      system,
		Turns:       history,
		Temperature: generateTemperature,
		MaxTokens:   c.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	text := utils.CompressWhitespacePreserveNewlines(output)
	if text == "" || strings.Contains(text, persona.NoRespondSentinel) {
		return "", ErrNoRespond
	}

	return text, nil
}

// Close releases the provider.
func (c *Client) Close() error {
	return c.provider.Close()
}
