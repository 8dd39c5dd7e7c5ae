package ai

import (
	"context"
	"errors"

	"github.com/robalyx/chorus/internal/persona"
)

var (
	// ErrModelResponse indicates the model returned no usable candidate.
	ErrModelResponse = errors.New("model returned no usable response")
	// ErrNoRespond indicates the model chose to stay silent.
	ErrNoRespond = errors.New("model chose not to respond")
	// ErrUnknownProvider indicates an unsupported provider name in the config.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Task identifies which capability a request serves.
type Task int

const (
	TaskClassify Task = iota
	TaskGenerate
	TaskJudge
)

// String returns the task name used in logs.
func (t Task) String() string {
	switch t {
	case TaskClassify:
		return "classify"
	case TaskGenerate:
		return "generate"
	case TaskJudge:
		return "judge"
	default:
		return "unknown"
	}
}

// Request is a provider-neutral completion request.
type Request struct {
	Task        Task
	Model       string
	System      string
	Turns       []persona.Turn
	Temperature float32
	MaxTokens   int
	// JSON asks for a JSON object response.
	JSON bool
}

// Provider sends completion requests to a language model backend.
type Provider interface {
	// Complete returns the text of the first candidate.
	Complete(ctx context.Context, req *Request) (string, error)
	// Close releases the provider connection.
	Close() error
}
