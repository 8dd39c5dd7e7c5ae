package types

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	// InitialQualityScore is the score every new response starts with.
	InitialQualityScore = 0.5
	// PositiveReactionStep is added to the score on a positive reaction.
	PositiveReactionStep = 0.1
	// NegativeReactionStep is subtracted from the score on a negative reaction.
	NegativeReactionStep = 0.15
	// MinExemplarScore is the lowest score a response may have to be reused.
	MinExemplarScore = 0.6
)

// SentResponse is a reply the persona delivered, scored by later reactions.
type SentResponse struct {
	bun.BaseModel `bun:"table:sent_responses,alias:sent_response"`

	ID                int64     `bun:",pk,autoincrement"`
	TriggerContent    string    `bun:",notnull"`
	ResponseContent   string    `bun:",notnull"`
	CommunityID       string    `bun:",notnull"`
	ChannelID         string    `bun:",notnull"`
	PositiveReactions int       `bun:",notnull,default:0"`
	NegativeReactions int       `bun:",notnull,default:0"`
	QualityScore      float64   `bun:",notnull,default:0.5"`
	CreatedAt         time.Time `bun:",notnull"`
}
