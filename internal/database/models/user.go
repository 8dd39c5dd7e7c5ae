package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/chorus/internal/database/dbretry"
	"github.com/robalyx/chorus/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// UserModel handles database operations for member profiles and topics.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a new user model.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// TouchProfile records that a member spoke at the given time, creating the profile if needed.
func (r *UserModel) TouchProfile(ctx context.Context, userID, username string, at time.Time) error {
	at = at.UTC()

	update := func(ctx context.Context) (int64, error) {
		result, err := r.db.NewUpdate().
			Model((*types.UserProfile)(nil)).
			Set("username = ?", username).
			Set("interaction_count = interaction_count + 1").
			Set("last_seen_at = ?", at).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		return result.RowsAffected()
	}

	insert := func(ctx context.Context) (int64, error) {
		result, err := r.db.NewInsert().
			Model(&types.UserProfile{
				UserID:           userID,
				Username:         username,
				InteractionCount: 1,
				LastSeenAt:       at,
				CreatedAt:        at,
			}).
			On("CONFLICT (user_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		return result.RowsAffected()
	}

	if err := upsert(ctx, update, insert); err != nil {
		return fmt.Errorf("failed to touch user profile: %w", err)
	}

	return nil
}

// GetProfile returns the profile of a member, or nil if the member was never seen.
func (r *UserModel) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.UserProfile, error) {
		var profile types.UserProfile

		err := r.db.NewSelect().
			Model(&profile).
			Where("user_id = ?", userID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get user profile: %w", err)
		}

		return &profile, nil
	})
}

// TrackTopic increments how often a member brought up a topic.
func (r *UserModel) TrackTopic(ctx context.Context, userID, username, topic string, at time.Time) error {
	at = at.UTC()

	update := func(ctx context.Context) (int64, error) {
		result, err := r.db.NewUpdate().
			Model((*types.UserTopic)(nil)).
			Set("frequency = frequency + 1").
			Set("username = ?", username).
			Set("last_seen_at = ?", at).
			Where("user_id = ?", userID).
			Where("topic = ?", topic).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		return result.RowsAffected()
	}

	insert := func(ctx context.Context) (int64, error) {
		result, err := r.db.NewInsert().
			Model(&types.UserTopic{
				UserID:     userID,
				Username:   username,
				Topic:      topic,
				Frequency:  1,
				LastSeenAt: at,
			}).
			On("CONFLICT (user_id, topic) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		return result.RowsAffected()
	}

	if err := upsert(ctx, update, insert); err != nil {
		return fmt.Errorf("failed to track topic %q: %w", topic, err)
	}

	return nil
}

// TopTopics returns the topics a member brings up most.
func (r *UserModel) TopTopics(ctx context.Context, userID string, limit int) ([]*types.UserTopic, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.UserTopic, error) {
		var topics []*types.UserTopic

		err := r.db.NewSelect().
			Model(&topics).
			Where("user_id = ?", userID).
			Order("frequency DESC", "last_seen_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get top topics: %w", err)
		}

		return topics, nil
	})
}

// InteractionSummary condenses what is known about a member.
func (r *UserModel) InteractionSummary(ctx context.Context, userID string) (*types.InteractionSummary, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.InteractionSummary, error) {
		summary := &types.InteractionSummary{}

		total, err := r.db.NewSelect().
			Model((*types.Message)(nil)).
			Where("author_id = ?", userID).
			Where("is_bot_response = ?", false).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		summary.TotalMessages = total

		if total > 0 {
			var last types.Message

			err = r.db.NewSelect().
				Model(&last).
				Column("content", "created_at").
				Where("author_id = ?", userID).
				Where("is_bot_response = ?", false).
				Order("created_at DESC", "id DESC").
				Limit(1).
				Scan(ctx)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to get last message: %w", err)
			}
			summary.LastMessage = last.Content
			summary.LastSeenAt = last.CreatedAt
		}

		// Bot replies whose trigger was written by this member
		interactions, err := r.db.NewSelect().
			TableExpr("messages AS bot_reply").
			Join("JOIN messages AS origin ON bot_reply.reply_to_ref = origin.message_ref").
			Where("bot_reply.is_bot_response = ?", true).
			Where("origin.author_id = ?", userID).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count bot interactions: %w", err)
		}
		summary.BotInteractions = interactions

		err = r.db.NewSelect().
			Model(&summary.TopTopics).
			Where("user_id = ?", userID).
			Order("frequency DESC", "last_seen_at DESC").
			Limit(3).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get top topics: %w", err)
		}

		return summary, nil
	})
}

// upsert runs update and falls back to insert when no row matched. A lost
// insert race is resolved by updating once more.
func upsert(ctx context.Context, update, insert func(context.Context) (int64, error)) error {
	affected, err := update(ctx)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	affected, err = insert(ctx)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	_, err = update(ctx)

	return err
}
