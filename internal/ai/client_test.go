package ai_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/robalyx/chorus/internal/ai"
	"github.com/robalyx/chorus/internal/intent"
	"github.com/robalyx/chorus/internal/persona"
	"github.com/robalyx/chorus/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu       sync.Mutex
	output   string
	err      error
	requests []*ai.Request
}

func (f *fakeProvider) Complete(ctx context.Context, req *ai.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	return f.output, f.err
}

func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) last() *ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[len(f.requests)-1]
}

func newClient(provider ai.Provider) *ai.Client {
	cfg := &config.LLM{
		ClassifyModel:   "classify-model",
		GenerateModel:   "generate-model",
		JudgeModel:      "judge-model",
		MaxOutputTokens: 500,
		RequestTimeout:  1000,
		MaxConcurrent:   2,
	}

	return ai.NewClient(provider, cfg, "Mia", zap.NewNop())
}

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		output    string
		want      intent.Judgment
		malformed bool
	}{
		{
			name:   "plain json",
			output: `{"respond": true, "reason": "pide ayuda", "urgency": "high"}`,
			want:   intent.Judgment{Respond: true, Reason: "pide ayuda", Urgency: intent.UrgencyHigh},
		},
		{
			name:   "fenced json",
			output: "```json\n{\"respond\": false, \"reason\": \"charla\", \"urgency\": \"low\"}\n```",
			want:   intent.Judgment{Respond: false, Reason: "charla", Urgency: intent.UrgencyLow},
		},
		{
			name:   "unknown urgency",
			output: `{"respond": true, "reason": "saludo", "urgency": "urgent"}`,
			want:   intent.Judgment{Respond: true, Reason: "saludo", Urgency: intent.UrgencyLow},
		},
		{
			name:      "not json",
			output:    "Sí, debería responder.",
			malformed: true,
		},
		{
			name:      "missing respond",
			output:    `{"reason": "x", "urgency": "low"}`,
			malformed: true,
		},
		{
			name:      "wrong type",
			output:    `{"respond": "yes", "reason": "x", "urgency": "low"}`,
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := &fakeProvider{output: tt.output}
			client := newClient(provider)

			got, err := client.ClassifyIntent(context.Background(), "Academia", "hola?", []intent.Line{
				{Speaker: "Ana", Text: "buenas"},
				{Speaker: "Luis", Text: "qué tal"},
			})
			if tt.malformed {
				require.ErrorIs(t, err, intent.ErrMalformedOutput)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := provider.last()
			assert.Equal(t, ai.TaskClassify, req.Task)
			assert.Equal(t, "classify-model", req.Model)
			assert.True(t, req.JSON)
			require.Len(t, req.Turns, 1)
			assert.Contains(t, req.Turns[0].Content, "[Ana]: buenas\n[Luis]: qué tal")
			assert.Contains(t, req.Turns[0].Content, `Mensaje nuevo: "hola?"`)
			assert.Contains(t, req.Turns[0].Content, "Mia es el Community Manager de Academia.")
		})
	}
}

func TestClassifyIntentProviderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	client := newClient(&fakeProvider{err: boom})

	_, err := client.ClassifyIntent(context.Background(), "", "hola", nil)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, intent.ErrMalformedOutput)
}

func TestJudgeNaturalness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		output string
		want   bool
	}{
		{output: "NATURAL", want: true},
		{output: "natural.", want: true},
		{output: "**Natural**", want: true},
		{output: "IA", want: false},
		{output: "NO NATURAL", want: false},
		{output: "UNNATURAL", want: false},
		{output: "IA, no suena natural", want: false},
		{output: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			t.Parallel()

			provider := &fakeProvider{output: tt.output}
			client := newClient(provider)

			got, err := client.JudgeNaturalness(context.Background(), "jaja sí, mañana a las 6")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := provider.last()
			assert.Equal(t, ai.TaskJudge, req.Task)
			assert.Equal(t, "judge-model", req.Model)
			assert.Contains(t, req.Turns[0].Content, "jaja sí, mañana a las 6")
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	history := []persona.Turn{
		{Role: persona.RoleUser, Content: "[Ana]: cuándo es el directo?"},
	}

	t.Run("reply", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{output: "  el jueves a las 7 😊  "}
		client := newClient(provider)

		got, err := client.Generate(context.Background(), history, "SYSTEM", "\nCONTEXTO")
		require.NoError(t, err)
		assert.Equal(t, "el jueves a las 7 😊", got)

		req := provider.last()
		assert.Equal(t, ai.TaskGenerate, req.Task)
		assert.Equal(t, "generate-model", req.Model)
		assert.Equal(t, "SYSTEM\n\nCONTEXTO", req.System)
		assert.Equal(t, 500, req.MaxTokens)
		assert.Equal(t, history, req.Turns)
	})

	t.Run("without user context", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{output: "vale"}
		client := newClient(provider)

		_, err := client.Generate(context.Background(), history, "SYSTEM", "")
		require.NoError(t, err)
		assert.Equal(t, "SYSTEM", provider.last().System)
	})

	t.Run("sentinel", func(t *testing.T) {
		t.Parallel()

		client := newClient(&fakeProvider{output: persona.NoRespondSentinel})

		_, err := client.Generate(context.Background(), history, "SYSTEM", "")
		require.ErrorIs(t, err, ai.ErrNoRespond)
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{output: "hola"}
		client := newClient(provider)

		_, err := client.Generate(context.Background(), nil, "SYSTEM", "")
		require.ErrorIs(t, err, ai.ErrNoRespond)
		assert.Empty(t, provider.requests)
	})
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{output: "NATURAL"}
	client := newClient(provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.JudgeNaturalness(ctx, "hola")
	require.ErrorIs(t, err, context.Canceled)
}
