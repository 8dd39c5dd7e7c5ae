package trainer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/robalyx/chorus/internal/setup/config"
)

const (
	profileFillers  = 5
	profileEmojis   = 5
	profileWords    = 15
	profileExamples = 5
	profileLanguage = "español"
	exampleContext  = "Mensaje real extraído"
)

// Tone guesses a tone description from punctuation and message length.
func Tone(style *Style) string {
	switch {
	case style.ExclamationRate > 1:
		return "muy expresivo y energético"
	case style.ExclamationRate > 0.3:
		return "casual y expresivo"
	case style.AverageLength > 100:
		return "detallado y conversacional"
	default:
		return "directo y conciso"
	}
}

// BuildPersona turns a measured style into a persona draft. The never-say
// list is left for the operator to write.
func BuildPersona(style *Style, name, description string) *config.Persona {
	persona := &config.Persona{
		Name:        name,
		Description: description,
		Tone:        Tone(style),
		Language:    profileLanguage,
		Fillers:     head(style.Fillers, profileFillers),
		Emojis:      head(style.Emojis, profileEmojis),
		Patterns: map[string]string{
			"longitud": fmt.Sprintf("Tus mensajes suelen tener unos %d caracteres", style.AverageLength),
		},
	}

	if words := head(style.Words, profileWords); len(words) > 0 {
		persona.Patterns["vocabulario"] = "Palabras que usas a menudo: " + strings.Join(words, ", ")
	}

	if style.FrequentCaps {
		persona.Patterns["mayusculas"] = "A veces escribes en mayúsculas para remarcar"
	}

	for _, example := range head(style.Examples, profileExamples) {
		persona.Examples = append(persona.Examples, config.PersonaExample{
			Context: exampleContext,
			Reply:   example,
		})
	}

	return persona
}

// Render writes the persona as a bot.toml [persona] block preceded by an
// analysis header.
func Render(style *Style, persona *config.Persona) ([]byte, error) {
	examples := make([]map[string]any, 0, len(persona.Examples))
	for _, ex := range persona.Examples {
		examples = append(examples, map[string]any{
			"context":      ex.Context,
			"user_message": ex.UserMessage,
			"reply":        ex.Reply,
		})
	}

	block := map[string]any{
		"name":        persona.Name,
		"description": persona.Description,
		"tone":        persona.Tone,
		"language":    persona.Language,
		"fillers":     nonNil(persona.Fillers),
		"emojis":      nonNil(persona.Emojis),
		"never_say":   nonNil(persona.NeverSay),
		"patterns":    persona.Patterns,
	}
	if len(examples) > 0 {
		block["examples"] = examples
	}

	body, err := toml.Parser().Marshal(map[string]any{"persona": block})
	if err != nil {
		return nil, fmt.Errorf("failed to encode persona: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Generated from %d messages.\n", style.MessageCount)
	fmt.Fprintf(&buf, "# Average length %d, exclamations %s and questions %s per message.\n",
		style.AverageLength,
		strconv.FormatFloat(style.ExclamationRate, 'f', 2, 64),
		strconv.FormatFloat(style.QuestionRate, 'f', 2, 64))
	buf.WriteString("# Fill never_say and the user_message of each example before use.\n\n")
	buf.Write(body)

	return buf.Bytes(), nil
}

func head(values []string, n int) []string {
	return values[:min(n, len(values))]
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
