package ai

const (
	// IntentPrompt asks whether the persona should join the conversation.
	// Arguments: persona name, community name, channel context, message.
	IntentPrompt = `%[1]s es el Community Manager de %[2]s. Decide si debe responder a este mensaje.

DEBE responder si:
- Es una pregunta directa (sobre la formación, directos, acceso, fechas, horarios)
- Alguien pide ayuda o tiene un problema
- Alguien saluda o se despide y nadie más ha respondido
- Alguien agradece algo que %[1]s hizo
- Es un tema de soporte técnico

NO debe responder si:
- Es una conversación entre otros miembros que no necesita su intervención
- Alguien solo comparte un enlace o recurso sin preguntar nada
- Ya respondió otro admin o miembro del equipo
- Es un mensaje muy corto sin contenido relevante (emoji suelto, "ok", etc.)

Contexto del canal (últimos mensajes):
%[3]s

Mensaje nuevo: "%[4]s"

Responde SOLO con un JSON:
{"respond": true/false, "reason": "razón breve", "urgency": "high/medium/low"}`

	// JudgePrompt asks whether a reply reads like a real person.
	// Arguments: reply.
	JudgePrompt = `¿Esta respuesta suena como una persona real en Discord o como un asistente de IA?

Respuesta a evaluar: "%s"

Responde SOLO "NATURAL" o "IA".`

	// defaultCommunityName fills the prompt for servers without a display name.
	defaultCommunityName = "la comunidad"

	// NaturalVerdict is the affirmative judge answer.
	NaturalVerdict = "NATURAL"
)
