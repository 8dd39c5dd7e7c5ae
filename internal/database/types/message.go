package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Message is a chat message seen or sent by the persona.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:message"`

	ID            int64     `bun:",pk,autoincrement"`
	MessageRef    string    `bun:",notnull,unique"`
	CommunityID   string    `bun:",notnull"`
	ChannelID     string    `bun:",notnull"`
	AuthorID      string    `bun:",notnull"`
	AuthorName    string    `bun:",notnull"`
	Content       string    `bun:",notnull"`
	IsBotResponse bool      `bun:",notnull,default:false"`
	ReplyToRef    string    `bun:",nullzero"`
	CreatedAt     time.Time `bun:",notnull"`
}

// Speaker returns the display label used when rendering context.
func (m *Message) Speaker() string {
	if m.AuthorName == "" {
		return "usuario"
	}

	return m.AuthorName
}
