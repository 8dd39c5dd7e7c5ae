package persona

import (
	"fmt"

	"github.com/robalyx/chorus/internal/database/types"
)

// Role is the speaker side of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContinuePrompt closes a conversation that ends on the persona's turn.
const ContinuePrompt = "[sistema]: continúa la conversación si es apropiado"

// Turn is one or more consecutive messages from the same side.
type Turn struct {
	Role    Role
	Content string
}

// FormatConversation turns channel history into alternating turns that start
// and end with the user side. Messages by selfID or flagged as persona
// replies belong to the assistant. An empty result means there is nothing
// to answer.
func FormatConversation(messages []*types.Message, selfID string) []Turn {
	turns := make([]Turn, 0, len(messages))

	for _, msg := range messages {
		role := RoleUser
		if msg.IsBotResponse || (selfID != "" && msg.AuthorID == selfID) {
			role = RoleAssistant
		}

		line := fmt.Sprintf("[%s]: %s", msg.Speaker(), msg.Content)

		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n" + line
			continue
		}

		turns = append(turns, Turn{Role: role, Content: line})
	}

	if len(turns) > 0 && turns[0].Role == RoleAssistant {
		turns = turns[1:]
	}

	if n := len(turns); n > 0 && turns[n-1].Role == RoleAssistant {
		turns = append(turns, Turn{Role: RoleUser, Content: ContinuePrompt})
	}

	return turns
}
