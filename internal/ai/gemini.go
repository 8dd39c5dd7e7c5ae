package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/robalyx/chorus/internal/persona"
	"google.golang.org/api/option"
)

// ApplicationJSON is the MIME type for JSON content.
const ApplicationJSON = "application/json"

// intentSchema constrains classifier output on Gemini.
var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"respond": {
			Type:        genai.TypeBoolean,
			Description: "Whether the persona should reply",
		},
		"reason": {
			Type:        genai.TypeString,
			Description: "Short reason for the decision",
		},
		"urgency": {
			Type:        genai.TypeString,
			Enum:        []string{"high", "medium", "low"},
			Description: "How soon the message needs an answer",
		},
	},
	Required: []string{"respond", "reason", "urgency"},
}

// GeminiProvider talks to Google Gemini models.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req *Request) (string, error) {
	if len(req.Turns) == 0 {
		return "", fmt.Errorf("%w: empty conversation", ErrModelResponse)
	}

	model := p.client.GenerativeModel(req.Model)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSON {
		model.ResponseMIMEType = ApplicationJSON
		if req.Task == TaskClassify {
			model.ResponseSchema = intentSchema
		}
	}

	history, last := splitTurns(req.Turns)

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrModelResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", ErrModelResponse
	}

	return sb.String(), nil
}

// Close implements Provider.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// splitTurns converts all but the final turn to Gemini chat history.
func splitTurns(turns []persona.Turn) ([]*genai.Content, persona.Turn) {
	history := make([]*genai.Content, 0, len(turns)-1)

	for _, turn := range turns[:len(turns)-1] {
		role := "user"
		if turn.Role == persona.RoleAssistant {
			role = "model"
		}

		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	return history, turns[len(turns)-1]
}
