package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/chorus/internal/ai"
	"github.com/robalyx/chorus/internal/database/types"
	"github.com/robalyx/chorus/internal/gate"
	"github.com/robalyx/chorus/internal/intent"
	"github.com/robalyx/chorus/internal/persona"
	"github.com/robalyx/chorus/internal/pipeline"
	"github.com/robalyx/chorus/internal/quality"
	"github.com/robalyx/chorus/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	selfID      = "bot-1"
	communityID = "guild-1"
	channelID   = "chan-1"
)

var baseTime = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type memoryMessages struct {
	mu       sync.Mutex
	messages []*types.Message
}

func (m *memoryMessages) SaveMessage(ctx context.Context, msg *types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.messages {
		if existing.MessageRef == msg.MessageRef {
			return nil
		}
	}
	m.messages = append(m.messages, msg)

	return nil
}

func (m *memoryMessages) RecentMessages(_ context.Context, channelID string, limit int) ([]*types.Message, error) {
	return m.filter(channelID, time.Time{}, limit), nil
}

func (m *memoryMessages) RecentContext(
	_ context.Context, channelID string, since time.Time, limit int,
) ([]*types.Message, error) {
	return m.filter(channelID, since, limit), nil
}

func (m *memoryMessages) filter(channelID string, since time.Time, limit int) []*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.Message
	for _, msg := range m.messages {
		if msg.ChannelID == channelID && msg.CreatedAt.After(since) {
			out = append(out, msg)
		}
	}

	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out
}

func (m *memoryMessages) botMessages() []*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.Message
	for _, msg := range m.messages {
		if msg.IsBotResponse {
			out = append(out, msg)
		}
	}

	return out
}

type fakeUsers struct {
	mu      sync.Mutex
	touched []string
	topics  []string
	summary *types.InteractionSummary
}

func (f *fakeUsers) TouchProfile(_ context.Context, userID, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = append(f.touched, userID)

	return nil
}

func (f *fakeUsers) TrackTopic(_ context.Context, _, _, topic string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.topics = append(f.topics, topic)

	return nil
}

func (f *fakeUsers) InteractionSummary(context.Context, string) (*types.InteractionSummary, error) {
	return f.summary, nil
}

type sentRecord struct {
	trigger, response string
}

type fakeFeedback struct {
	mu        sync.Mutex
	sent      []sentRecord
	reactions map[string]bool
	exemplars []*types.SentResponse
}

func (f *fakeFeedback) RecordSent(ctx context.Context, trigger, response, _, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sentRecord{trigger: trigger, response: response})

	return nil
}

func (f *fakeFeedback) ApplyReaction(_ context.Context, ref string, positive bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reactions == nil {
		f.reactions = make(map[string]bool)
	}
	f.reactions[ref] = positive

	return 1, nil
}

func (f *fakeFeedback) TopExemplars(context.Context, string, int) ([]*types.SentResponse, error) {
	return f.exemplars, nil
}

type fakeGate struct {
	mu       sync.Mutex
	decision gate.Decision
	lines    []intent.Line
	records  int
}

func (f *fakeGate) Decide(ctx context.Context, req gate.Request) gate.Decision {
	lines, err := req.Context(ctx)
	if err != nil {
		return gate.Decision{Reason: gate.ReasonStateUnavailable}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lines = lines

	return f.decision
}

func (f *fakeGate) Record(ctx context.Context, _, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.records++

	return nil
}

type fakeGenerator struct {
	reply  string
	err    error
	calls  int
	system string
	turns  []persona.Turn
}

func (f *fakeGenerator) Generate(_ context.Context, turns []persona.Turn, systemPrompt, userContext string) (string, error) {
	f.calls++
	f.system = systemPrompt + userContext
	f.turns = turns

	return f.reply, f.err
}

type naturalJudge struct{ calls int }

func (j *naturalJudge) JudgeNaturalness(context.Context, string) (bool, error) {
	j.calls++
	return true, nil
}

type fakeSender struct {
	err    error
	sends  int
	onSend func()
}

func (f *fakeSender) Send(_ context.Context, _, _, _ string) (string, error) {
	f.sends++
	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return "", f.err
	}

	return fmt.Sprintf("reply-%d", f.sends), nil
}

type communities map[string]*config.Community

func (c communities) Community(id string) (*config.Community, bool) {
	community, ok := c[id]
	return community, ok
}

type fixture struct {
	messages  *memoryMessages
	users     *fakeUsers
	feedback  *fakeFeedback
	gate      *fakeGate
	generator *fakeGenerator
	judge     *naturalJudge
	sender    *fakeSender
	orch      *pipeline.Orchestrator
}

func setupTest(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		messages:  &memoryMessages{},
		users:     &fakeUsers{},
		feedback:  &fakeFeedback{},
		gate:      &fakeGate{decision: gate.Decision{Respond: true, Reason: gate.ReasonMention}},
		generator: &fakeGenerator{reply: "el directo es el jueves a las 7"},
		judge:     &naturalJudge{},
		sender:    &fakeSender{},
	}

	logger := zap.NewNop()

	f.orch = pipeline.New(pipeline.Dependencies{
		Messages:  f.messages,
		Users:     f.users,
		Feedback:  f.feedback,
		Gate:      f.gate,
		Generator: f.generator,
		Filter:    quality.NewFilter(quality.DefaultBannedPhrases, quality.DefaultLimits(), f.judge, logger),
		Sender:    f.sender,
		Prompts:   persona.NewBuilder(&config.Persona{Name: "Mia", Language: "español"}),
		Topics:    persona.NewTopicDetector(map[string]string{"directo": "directos/eventos"}),
		Communities: communities{
			communityID: {ID: communityID, Name: "NEO"},
		},
	}, pipeline.Settings{
		RecentHistory:        15,
		ClassifierWindow:     10 * time.Minute,
		ClassifierWindowSize: 2,
		ExemplarLimit:        3,
	}, logger, pipeline.WithClock(func() time.Time { return baseTime }))
	f.orch.SetSelfID(selfID)

	return f
}

func inbound(ref, content string) *pipeline.Message {
	return &pipeline.Message{
		Ref:            ref,
		CommunityID:    communityID,
		ChannelID:      channelID,
		AuthorID:       "user-1",
		AuthorName:     "Ana",
		Content:        content,
		MentionsTarget: true,
		CreatedAt:      baseTime,
	}
}

func TestHandleSent(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	f.feedback.exemplars = []*types.SentResponse{
		{TriggerContent: "hay grabación?", ResponseContent: "sí, en la plataforma", QualityScore: 0.9},
	}

	result, err := f.orch.Handle(t.Context(), inbound("m-1", "cuándo es el directo?"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageSent, result.Stage)
	assert.Equal(t, "reply-1", result.SentRef)
	assert.True(t, result.Verdict.Accepted)

	assert.Equal(t, 1, f.gate.records)
	assert.Equal(t, 1, f.judge.calls)
	require.Len(t, f.feedback.sent, 1)
	assert.Equal(t, sentRecord{trigger: "cuándo es el directo?", response: "el directo es el jueves a las 7"}, f.feedback.sent[0])

	bots := f.messages.botMessages()
	require.Len(t, bots, 1)
	assert.Equal(t, "reply-1", bots[0].MessageRef)
	assert.Equal(t, "m-1", bots[0].ReplyToRef)
	assert.Equal(t, selfID, bots[0].AuthorID)
	assert.Equal(t, "Mia", bots[0].AuthorName)

	assert.Equal(t, []string{"user-1"}, f.users.touched)
	assert.Equal(t, []string{"directos/eventos"}, f.users.topics)

	require.Len(t, f.generator.turns, 1)
	assert.Equal(t, "[Ana]: cuándo es el directo?", f.generator.turns[0].Content)
	assert.Contains(t, f.generator.system, "sí, en la plataforma")
	assert.Contains(t, f.generator.system, "NEO")
}

func TestHandleGated(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	f.gate.decision = gate.Decision{Reason: gate.ReasonCooldown}

	result, err := f.orch.Handle(t.Context(), inbound("m-1", "hola"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageGated, result.Stage)
	assert.Equal(t, "cooldown", result.Decision.ReasonCode())
	assert.Zero(t, f.generator.calls)
	assert.Zero(t, f.sender.sends)

	// The message is still logged for later context.
	require.Len(t, f.messages.messages, 1)
	assert.Equal(t, "m-1", f.messages.messages[0].MessageRef)
}

func TestHandleClassifierContext(t *testing.T) {
	t.Parallel()

	f := setupTest(t)

	for i, content := range []string{"viejo", "uno", "dos", "tres"} {
		at := baseTime.Add(time.Duration(i-3) * time.Minute)
		if content == "viejo" {
			at = baseTime.Add(-time.Hour)
		}

		require.NoError(t, f.messages.SaveMessage(t.Context(), &types.Message{
			MessageRef: fmt.Sprintf("old-%d", i),
			ChannelID:  channelID,
			AuthorName: "Luis",
			Content:    content,
			CreatedAt:  at,
		}))
	}

	_, err := f.orch.Handle(t.Context(), inbound("m-1", "qué opináis?"))
	require.NoError(t, err)

	assert.Equal(t, []intent.Line{
		{Speaker: "Luis", Text: "dos"},
		{Speaker: "Luis", Text: "tres"},
	}, f.gate.lines)
}

func TestHandleDeliveryFailure(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	f.sender.err = fmt.Errorf("%w: missing permissions", pipeline.ErrDelivery)

	result, err := f.orch.Handle(t.Context(), inbound("m-1", "ayuda"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageDeliveryFailed, result.Stage)
	assert.Empty(t, result.SentRef)
	assert.Zero(t, f.gate.records)
	assert.Empty(t, f.feedback.sent)
	assert.Empty(t, f.messages.botMessages())
}

func TestHandleCommitSurvivesDeadline(t *testing.T) {
	t.Parallel()

	f := setupTest(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	f.sender.onSend = cancel

	result, err := f.orch.Handle(ctx, inbound("m-1", "cuándo es el directo?"))
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	assert.Equal(t, pipeline.StageSent, result.Stage)
	assert.Equal(t, 1, f.gate.records)
	assert.Len(t, f.feedback.sent, 1)
	assert.Len(t, f.messages.botMessages(), 1)
}

func TestHandleRejected(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	f.generator.reply = "Como modelo de lenguaje no puedo opinar."

	result, err := f.orch.Handle(t.Context(), inbound("m-1", "qué opinas?"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageRejected, result.Stage)
	assert.Contains(t, result.Verdict.Rejections, quality.RejectBannedPhrase)
	assert.Zero(t, f.judge.calls)
	assert.Zero(t, f.sender.sends)
	assert.Zero(t, f.gate.records)
	assert.Empty(t, f.feedback.sent)
}

func TestHandleGeneratorSilence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		stage pipeline.Stage
	}{
		{name: "no respond", err: ai.ErrNoRespond, stage: pipeline.StageNoReply},
		{name: "remote failure", err: errors.New("timeout"), stage: pipeline.StageGenerateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTest(t)
			f.generator.err = tt.err

			result, err := f.orch.Handle(t.Context(), inbound("m-1", "hola"))
			require.NoError(t, err)

			assert.Equal(t, tt.stage, result.Stage)
			assert.Zero(t, f.sender.sends)
			assert.Zero(t, f.gate.records)
		})
	}
}

func TestHandleEmptyHistory(t *testing.T) {
	t.Parallel()

	f := setupTest(t)

	// A message by the persona itself formats to an empty conversation.
	msg := inbound("m-1", "hola a todos")
	msg.AuthorID = selfID

	result, err := f.orch.Handle(t.Context(), msg)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageEmptyHistory, result.Stage)
	assert.Zero(t, f.generator.calls)
}

func TestReact(t *testing.T) {
	t.Parallel()

	f := setupTest(t)

	require.NoError(t, f.orch.React(t.Context(), "reply-1", true))
	require.NoError(t, f.orch.React(t.Context(), "reply-2", false))

	assert.Equal(t, map[string]bool{"reply-1": true, "reply-2": false}, f.feedback.reactions)
}
