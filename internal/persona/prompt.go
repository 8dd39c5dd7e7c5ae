package persona

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robalyx/chorus/internal/database/types"
	"github.com/robalyx/chorus/internal/setup/config"
	"github.com/robalyx/chorus/pkg/utils"
)

// NoRespondSentinel is what the generator answers when it prefers silence.
const NoRespondSentinel = "[NO_RESPOND]"

const (
	exemplarHeader    = "RESPUESTAS PASADAS QUE FUNCIONARON BIEN (usa como referencia de tono y estilo):"
	maxExemplarPrompt = 100
	maxExemplarReply  = 200
)

const rulesTemplate = `
REGLAS IMPORTANTES:
1. Responde como lo haría la persona real. NO suenes como un asistente de IA.
2. Sé natural, usa el mismo largo de mensaje que usaría la persona. %[1]s suele responder en 1-3 líneas cortas.
3. Si no sabes algo, redirige a un ticket o di que lo consultas. NUNCA inventes información.
4. Mantén la coherencia con mensajes anteriores en la conversación.
5. NO uses frases como "¡Claro!", "¡Por supuesto!", "¡Excelente pregunta!" u otras frases típicas de IA.
6. Responde en %[2]s (el idioma de la comunidad).
7. Si la conversación no requiere tu input, NO respondas (devuelve exactamente "%[3]s").
8. Mantén tus respuestas cortas y naturales como en un chat real de Discord.
9. Cuando haya una pregunta frecuente, usa las respuestas predefinidas.
10. NUNCA inventes URLs o enlaces. Solo usa los enlaces oficiales listados arriba.
11. Para problemas técnicos complejos, redirige a ticket o menciona al equipo.
12. Puedes tener pequeños errores ortográficos naturales, como lo haría %[1]s realmente.`

// Builder renders system prompts for one persona.
type Builder struct {
	persona *config.Persona
}

// NewBuilder creates a prompt builder.
func NewBuilder(persona *config.Persona) *Builder {
	return &Builder{persona: persona}
}

// Name returns the persona display name.
func (b *Builder) Name() string {
	return b.persona.Name
}

// SystemPrompt combines the persona profile with the community context.
// A nil community renders the persona alone.
func (b *Builder) SystemPrompt(community *config.Community) string {
	p := b.persona
	var sb strings.Builder

	fmt.Fprintf(&sb, "Eres %s. %s\n\n", p.Name, p.Description)
	sb.WriteString("ESTILO DE COMUNICACIÓN:\n")
	fmt.Fprintf(&sb, "- Tono: %s\n", p.Tone)
	fmt.Fprintf(&sb, "- Idioma principal: %s\n", p.Language)
	fmt.Fprintf(&sb, "- Muletillas que usas: %s\n", strings.Join(p.Fillers, ", "))
	fmt.Fprintf(&sb, "- Emojis que usas: %s\n", strings.Join(p.Emojis, " "))

	sb.WriteString("\nCOSAS QUE NUNCA DIRÍAS O HARÍAS:")
	for _, item := range p.NeverSay {
		sb.WriteString("\n- " + item)
	}

	if len(p.Examples) > 0 {
		sb.WriteString("\n\nEJEMPLOS DE CÓMO RESPONDES:")
		for _, ex := range p.Examples {
			fmt.Fprintf(&sb, "\n\nContexto: %s\nUsuario dice: \"%s\"\nTú respondes: \"%s\"", ex.Context, ex.UserMessage, ex.Reply)
		}
	}

	if community != nil {
		writeCommunity(&sb, community)
	}

	if len(p.Patterns) > 0 {
		sb.WriteString("\n\nPATRONES DE COMPORTAMIENTO REAL:")
		writeSorted(&sb, p.Patterns)
	}

	language := p.Language
	if language == "" {
		language = "español"
	}
	fmt.Fprintf(&sb, "\n"+rulesTemplate, p.Name, language, NoRespondSentinel)

	return sb.String()
}

func writeCommunity(sb *strings.Builder, c *config.Community) {
	sb.WriteString("\n\nCONTEXTO DE ESTA COMUNIDAD:")
	fmt.Fprintf(sb, "\n- Servidor: %s", c.Name)
	fmt.Fprintf(sb, "\n- Descripción: %s", c.Description)
	fmt.Fprintf(sb, "\n- Temas frecuentes: %s", strings.Join(c.Topics, ", "))

	if c.SpecificTone != "" {
		fmt.Fprintf(sb, "\n- Tono en este servidor: %s", c.SpecificTone)
	}

	if c.ExtraContext != "" {
		fmt.Fprintf(sb, "\n- Contexto extra: %s", c.ExtraContext)
	}

	if len(c.KeyMembers) > 0 {
		sb.WriteString("\n\nPERSONAS QUE DEBES RECONOCER:")
		for _, m := range c.KeyMembers {
			fmt.Fprintf(sb, "\n- %s (relación: %s): %s", m.Name, m.Relation, m.Notes)
		}
	}

	if len(c.CannedAnswers) > 0 {
		sb.WriteString("\n\nRESPUESTAS PREDEFINIDAS (usa estas cuando apliquen, son las respuestas oficiales):")
		writeSorted(sb, c.CannedAnswers)
	}

	if len(c.Links) > 0 {
		sb.WriteString("\n\nENLACES OFICIALES (usa SOLO estos enlaces, nunca inventes URLs):")
		writeSorted(sb, c.Links)
	}
}

// writeSorted writes "- key: value" lines in key order so prompts are stable.
func writeSorted(sb *strings.Builder, entries map[string]string) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		fmt.Fprintf(sb, "\n- %s: %s", k, entries[k])
	}
}

// WithExemplars appends well rated past replies as tone references.
func WithExemplars(prompt string, exemplars []*types.SentResponse) string {
	if len(exemplars) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n" + exemplarHeader)

	for _, ex := range exemplars {
		fmt.Fprintf(&sb, "\nPregunta: \"%s\"\nRespuesta: \"%s\"",
			utils.TruncateRunes(ex.TriggerContent, maxExemplarPrompt),
			utils.TruncateRunes(ex.ResponseContent, maxExemplarReply))
	}

	return sb.String()
}

// UserContext describes a member's history for the generator. It is empty
// for members with at most one message.
func UserContext(username string, summary *types.InteractionSummary) string {
	if summary == nil || summary.TotalMessages <= 1 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n[CONTEXTO DEL USUARIO %s]: ", username)
	fmt.Fprintf(&sb, "Ha enviado %d mensajes. ", summary.TotalMessages)

	if summary.BotInteractions > 0 {
		fmt.Fprintf(&sb, "Has interactuado con él/ella %d veces antes. ", summary.BotInteractions)
	}

	if len(summary.TopTopics) > 0 {
		topics := make([]string, len(summary.TopTopics))
		for i, t := range summary.TopTopics {
			topics[i] = t.Topic
		}
		fmt.Fprintf(&sb, "Sus temas habituales: %s. ", strings.Join(topics, ", "))
	}

	sb.WriteString("Responde teniendo en cuenta este historial.")

	return sb.String()
}
