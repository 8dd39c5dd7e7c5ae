package intent

import (
	"strings"

	"github.com/robalyx/chorus/pkg/utils"
)

// DefaultQuestionKeywords are phrases that signal a question or a request for help.
var DefaultQuestionKeywords = []string{
	"alguien sabe", "alguien puede", "cómo puedo", "como puedo",
	"dónde está", "donde esta", "donde están", "dónde encuentro",
	"no puedo acceder", "no me deja", "no funciona", "no me aparece",
	"no encuentro", "no me sale", "tengo un problema", "tengo una duda",
	"ayuda", "help", "me podéis", "me pueden", "me puedes",
	"sabéis", "sabeis", "saben", "alguien", "por favor",
	"cuándo", "cuando es", "a qué hora", "a que hora",
	"qué paso", "que paso", "qué pasa", "que pasa",
	"cómo se", "como se", "necesito", "me gustaría saber",
}

// Heuristic detects questions and help requests without any remote call.
type Heuristic struct {
	normalizer *utils.TextNormalizer
	keywords   []string
}

// NewHeuristic creates a detector for the given keywords. Matching ignores
// case and accents, so "Cómo" and "como" are equivalent.
func NewHeuristic(keywords []string) *Heuristic {
	normalizer := utils.NewTextNormalizer()

	return &Heuristic{
		normalizer: normalizer,
		keywords:   normalizer.NormalizeAll(keywords),
	}
}

// IsQuestion reports whether text contains a question mark or a help keyword.
func (h *Heuristic) IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}

	return h.normalizer.ContainsAny(text, h.keywords)
}
