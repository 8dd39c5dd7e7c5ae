package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/robalyx/chorus/internal/database/dbretry"
	"github.com/robalyx/chorus/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MessageModel handles database operations for the message log.
type MessageModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMessage creates a new message model.
func NewMessage(db *bun.DB, logger *zap.Logger) *MessageModel {
	return &MessageModel{
		db:     db,
		logger: logger.Named("db_message"),
	}
}

// SaveMessage stores a message. Messages already logged under the same ref are left untouched.
func (m *MessageModel) SaveMessage(ctx context.Context, msg *types.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := m.db.NewInsert().
		Model(msg).
		On("CONFLICT (message_ref) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	m.logger.Debug("Saved message",
		zap.String("ref", msg.MessageRef),
		zap.String("channel", msg.ChannelID),
		zap.Bool("bot", msg.IsBotResponse))

	return nil
}

// RecentMessages returns the last limit messages of a channel in chronological order.
func (m *MessageModel) RecentMessages(ctx context.Context, channelID string, limit int) ([]*types.Message, error) {
	return m.recent(ctx, channelID, time.Time{}, limit)
}

// RecentContext returns at most limit messages of a channel sent after since,
// in chronological order.
func (m *MessageModel) RecentContext(
	ctx context.Context, channelID string, since time.Time, limit int,
) ([]*types.Message, error) {
	return m.recent(ctx, channelID, since, limit)
}

func (m *MessageModel) recent(
	ctx context.Context, channelID string, since time.Time, limit int,
) ([]*types.Message, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Message, error) {
		var messages []*types.Message

		query := m.db.NewSelect().
			Model(&messages).
			Where("channel_id = ?", channelID)
		if !since.IsZero() {
			query = query.Where("created_at > ?", since.UTC())
		}

		err := query.
			Order("created_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent messages: %w", err)
		}

		slices.Reverse(messages)

		return messages, nil
	})
}

// BotMessageContent returns the text of a message the persona sent.
// The boolean is false when ref is unknown or belongs to someone else.
func (m *MessageModel) BotMessageContent(ctx context.Context, ref string) (string, bool, error) {
	return botMessageContent(ctx, m.db, ref)
}

func botMessageContent(ctx context.Context, db bun.IDB, ref string) (string, bool, error) {
	var content string

	err := db.NewSelect().
		Model((*types.Message)(nil)).
		Column("content").
		Where("message_ref = ?", ref).
		Where("is_bot_response = ?", true).
		Limit(1).
		Scan(ctx, &content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to resolve bot message: %w", err)
	}

	return content, true, nil
}
