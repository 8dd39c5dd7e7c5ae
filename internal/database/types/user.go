package types

import (
	"time"

	"github.com/uptrace/bun"
)

// UserProfile tracks how often a member talks in front of the persona.
type UserProfile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:user_profile"`

	UserID           string    `bun:",pk"`
	Username         string    `bun:",notnull"`
	InteractionCount int       `bun:",notnull,default:0"`
	LastSeenAt       time.Time `bun:",notnull"`
	CreatedAt        time.Time `bun:",notnull"`
}

// UserTopic counts how often a member brings up a topic.
type UserTopic struct {
	bun.BaseModel `bun:"table:user_topics,alias:user_topic"`

	ID         int64     `bun:",pk,autoincrement"`
	UserID     string    `bun:",notnull"`
	Username   string    `bun:",notnull"`
	Topic      string    `bun:",notnull"`
	Frequency  int       `bun:",notnull,default:1"`
	LastSeenAt time.Time `bun:",notnull"`
}

// InteractionSummary condenses a member's history for prompt building.
type InteractionSummary struct {
	TotalMessages   int
	BotInteractions int
	LastMessage     string
	LastSeenAt      time.Time
	TopTopics       []*UserTopic
}
