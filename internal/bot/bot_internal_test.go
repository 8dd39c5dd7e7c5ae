package bot

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessage(t *testing.T) {
	t.Parallel()

	const (
		selfID  = snowflake.ID(100)
		guildID = snowflake.ID(200)
	)

	nick := "Anita"
	parent := snowflake.ID(299)
	created := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	t.Run("mention and reply to persona", func(t *testing.T) {
		t.Parallel()

		msg := toMessage(discord.Message{
			ID:                300,
			ChannelID:         400,
			Content:           "oye Mia, una duda",
			Author:            discord.User{ID: 500, Username: "ana"},
			Member:            &discord.Member{Nick: &nick},
			Mentions:          []discord.User{{ID: 501}, {ID: selfID}},
			MessageReference:  &discord.MessageReference{MessageID: &parent},
			ReferencedMessage: &discord.Message{ID: parent, Author: discord.User{ID: selfID}},
			CreatedAt:         created,
		}, guildID, selfID)

		assert.Equal(t, "300", msg.Ref)
		assert.Equal(t, "200", msg.CommunityID)
		assert.Equal(t, "400", msg.ChannelID)
		assert.Equal(t, "500", msg.AuthorID)
		assert.Equal(t, "Anita", msg.AuthorName)
		assert.Equal(t, "299", msg.ReplyToRef)
		assert.True(t, msg.MentionsTarget)
		assert.True(t, msg.IsReplyToTarget)
		assert.Equal(t, created, msg.CreatedAt)
	})

	t.Run("reply to another member", func(t *testing.T) {
		t.Parallel()

		msg := toMessage(discord.Message{
			ID:                301,
			Author:            discord.User{ID: 500, Username: "ana"},
			Mentions:          []discord.User{{ID: 501}},
			MessageReference:  &discord.MessageReference{MessageID: &parent},
			ReferencedMessage: &discord.Message{ID: parent, Author: discord.User{ID: 501}},
		}, guildID, selfID)

		assert.Equal(t, "ana", msg.AuthorName)
		assert.False(t, msg.MentionsTarget)
		assert.False(t, msg.IsReplyToTarget)
		assert.Equal(t, "299", msg.ReplyToRef)
	})
}

func TestNewReply(t *testing.T) {
	t.Parallel()

	create := newReply(400, "300", "buenas!")

	assert.Equal(t, "buenas!", create.Content)
	require.NotNil(t, create.AllowedMentions)
	assert.False(t, create.AllowedMentions.RepliedUser)
	assert.Empty(t, create.AllowedMentions.Parse)
	require.NotNil(t, create.MessageReference)
	assert.Equal(t, snowflake.ID(300), *create.MessageReference.MessageID)

	create = newReply(400, "", "hola")
	assert.Nil(t, create.MessageReference)
}

func TestIsOwnMessage(t *testing.T) {
	t.Parallel()

	self := snowflake.ID(100)
	other := snowflake.ID(500)

	assert.True(t, isOwnMessage(&self, self))
	assert.False(t, isOwnMessage(&other, self))
	assert.True(t, isOwnMessage(nil, self))
}
