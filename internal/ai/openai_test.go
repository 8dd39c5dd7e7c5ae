package ai_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/robalyx/chorus/internal/ai"
	"github.com/robalyx/chorus/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, content string) (*httptest.Server, <-chan chatRequest) {
	t.Helper()

	requests := make(chan chatRequest, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}

		var captured chatRequest
		assert.NoError(t, sonic.Unmarshal(body, &captured))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		requests <- captured

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   captured.Model,
			"choices": []map[string]any{},
		}
		if content != "" {
			resp["choices"] = []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}}
		}

		out, err := sonic.Marshal(resp)
		if !assert.NoError(t, err) {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, requests
}

func TestOpenAIProviderComplete(t *testing.T) {
	t.Parallel()

	server, requests := newChatServer(t, `{"respond": true}`)

	provider := ai.NewOpenAIProvider("test-key", server.URL+"/v1", server.Client())
	defer provider.Close()

	out, err := provider.Complete(context.Background(), &ai.Request{
		Task:   ai.TaskClassify,
		Model:  "gpt-test",
		System: "eres Mia",
		Turns: []persona.Turn{
			{Role: persona.RoleUser, Content: "[Ana]: hola"},
			{Role: persona.RoleAssistant, Content: "hola Ana!"},
			{Role: persona.RoleUser, Content: "[Ana]: qué tal"},
		},
		MaxTokens: 100,
		JSON:      true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"respond": true}`, out)

	captured := <-requests

	assert.Equal(t, "gpt-test", captured.Model)
	assert.Equal(t, 100, captured.MaxTokens)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "eres Mia", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "[Ana]: qué tal", captured.Messages[3].Content)
}

func TestOpenAIProviderEmptyChoices(t *testing.T) {
	t.Parallel()

	server, requests := newChatServer(t, "")

	provider := ai.NewOpenAIProvider("test-key", server.URL+"/v1", server.Client())

	_, err := provider.Complete(context.Background(), &ai.Request{
		Model: "gpt-test",
		Turns: []persona.Turn{{Role: persona.RoleUser, Content: "hola"}},
	})
	require.ErrorIs(t, err, ai.ErrModelResponse)

	captured := <-requests
	assert.Nil(t, captured.ResponseFormat)
}
