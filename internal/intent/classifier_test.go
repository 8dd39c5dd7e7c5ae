package intent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/robalyx/chorus/internal/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRemote struct {
	judgment intent.Judgment
	err      error
	calls    int
	recent    []intent.Line
	community string
}

func (f *fakeRemote) ClassifyIntent(_ context.Context, community, _ string, recent []intent.Line) (intent.Judgment, error) {
	f.calls++
	f.recent = recent
	f.community = community

	return f.judgment, f.err
}

func newClassifier(remote intent.Remote) *intent.Classifier {
	return intent.NewClassifier(intent.NewHeuristic(intent.DefaultQuestionKeywords), remote, zap.NewNop())
}

func TestHeuristic(t *testing.T) {
	t.Parallel()

	h := intent.NewHeuristic(intent.DefaultQuestionKeywords)

	tests := []struct {
		text string
		want bool
	}{
		{text: "hoy hay directo?", want: true},
		{text: "Alguien sabe donde estan las grabaciones", want: true},
		{text: "CÓMO PUEDO cancelar", want: true},
		{text: "como puedo cancelar", want: true},
		{text: "no me deja entrar", want: true},
		{text: "Me gustaria saber el horario", want: true},
		{text: "qué buen día hace", want: false},
		{text: "jajaja", want: false},
		{text: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, h.IsQuestion(tt.text))
		})
	}
}

func TestScreenNeverCallsRemote(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	classifier := newClassifier(remote)

	outcome := classifier.Screen("alguien puede ayudarme")
	require.True(t, outcome.IsDecided())
	assert.True(t, outcome.Judgment().Respond)
	assert.Equal(t, "question_detected", outcome.Judgment().Reason)

	outcome = classifier.Screen("buenos dias gente")
	assert.False(t, outcome.IsDecided())
	assert.Zero(t, outcome.Judgment())

	outcome = classifier.Screen("esto no funciona")
	require.True(t, outcome.IsDecided())
	assert.True(t, outcome.Judgment().Respond)
	assert.Zero(t, remote.calls)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	lines := []intent.Line{{Speaker: "ana", Text: "hola"}, {Speaker: "leo", Text: "buenas"}}
	load := func(context.Context) ([]intent.Line, error) { return lines, nil }

	tests := []struct {
		name   string
		remote *fakeRemote
		load   intent.ContextFunc
		want   intent.Judgment
	}{
		{
			name:   "remote says respond",
			remote: &fakeRemote{judgment: intent.Judgment{Respond: true, Reason: "tema relevante", Urgency: intent.UrgencyHigh}},
			load:   load,
			want:   intent.Judgment{Respond: true, Reason: "tema relevante", Urgency: intent.UrgencyHigh},
		},
		{
			name:   "missing urgency defaults to low",
			remote: &fakeRemote{judgment: intent.Judgment{Respond: false, Reason: "charla"}},
			load:   load,
			want:   intent.Judgment{Respond: false, Reason: "charla", Urgency: intent.UrgencyLow},
		},
		{
			name:   "malformed output",
			remote: &fakeRemote{err: fmt.Errorf("decode: %w", intent.ErrMalformedOutput), judgment: intent.Judgment{Respond: true}},
			load:   load,
			want:   intent.Judgment{Respond: false, Reason: intent.ReasonParseError, Urgency: intent.UrgencyLow},
		},
		{
			name:   "transport failure",
			remote: &fakeRemote{err: errors.New("timeout")},
			load:   load,
			want:   intent.Judgment{Respond: false, Reason: intent.ReasonRemoteError, Urgency: intent.UrgencyLow},
		},
		{
			name:   "context failure",
			remote: &fakeRemote{judgment: intent.Judgment{Respond: true}},
			load:   func(context.Context) ([]intent.Line, error) { return nil, errors.New("db down") },
			want:   intent.Judgment{Respond: false, Reason: intent.ReasonContext, Urgency: intent.UrgencyLow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := newClassifier(tt.remote).Resolve(t.Context(), "Academia", "mensaje", tt.load)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("context is forwarded", func(t *testing.T) {
		t.Parallel()

		remote := &fakeRemote{judgment: intent.Judgment{Respond: true}}
		newClassifier(remote).Resolve(t.Context(), "Academia", "mensaje", load)
		assert.Equal(t, 1, remote.calls)
		assert.Equal(t, lines, remote.recent)
		assert.Equal(t, "Academia", remote.community)
	})

	t.Run("nil remote is negative", func(t *testing.T) {
		t.Parallel()

		got := newClassifier(nil).Resolve(t.Context(), "Academia", "mensaje", load)
		assert.False(t, got.Respond)
	})
}

func TestParseUrgency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, intent.UrgencyHigh, intent.ParseUrgency(" HIGH "))
	assert.Equal(t, intent.UrgencyMedium, intent.ParseUrgency("medium"))
	assert.Equal(t, intent.UrgencyLow, intent.ParseUrgency("urgent"))
	assert.Equal(t, "[ana]: hola", intent.Line{Speaker: "ana", Text: "hola"}.String())
}
