package models

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/chorus/internal/database/dbretry"
	"github.com/robalyx/chorus/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// FeedbackModel scores sent responses from member reactions.
type FeedbackModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewFeedback creates a new feedback model.
func NewFeedback(db *bun.DB, logger *zap.Logger) *FeedbackModel {
	return &FeedbackModel{
		db:     db,
		logger: logger.Named("db_feedback"),
	}
}

// RecordSent stores a delivered response at the initial quality score.
func (r *FeedbackModel) RecordSent(ctx context.Context, trigger, response, communityID, channelID string) error {
	record := &types.SentResponse{
		TriggerContent:  trigger,
		ResponseContent: response,
		CommunityID:     communityID,
		ChannelID:       channelID,
		QualityScore:    types.InitialQualityScore,
		CreatedAt:       time.Now().UTC(),
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record sent response: %w", err)
	}

	r.logger.Debug("Recorded sent response",
		zap.String("community", communityID),
		zap.String("channel", channelID))

	return nil
}

// ApplyReaction adjusts the score of every response whose text matches the
// persona message identified by ref. Unknown refs are ignored.
// It returns the number of updated records.
func (r *FeedbackModel) ApplyReaction(ctx context.Context, ref string, positive bool) (int64, error) {
	content, ok, err := botMessageContent(ctx, r.db, ref)
	if err != nil {
		return 0, err
	}
	if !ok {
		r.logger.Debug("Reaction on unknown message ignored", zap.String("ref", ref))
		return 0, nil
	}

	query := r.db.NewUpdate().Model((*types.SentResponse)(nil))
	if positive {
		query = query.
			Set("positive_reactions = positive_reactions + 1").
			Set("quality_score = CASE WHEN quality_score + ? > 1.0 THEN 1.0 ELSE quality_score + ? END",
				types.PositiveReactionStep, types.PositiveReactionStep)
	} else {
		query = query.
			Set("negative_reactions = negative_reactions + 1").
			Set("quality_score = CASE WHEN quality_score - ? < 0.0 THEN 0.0 ELSE quality_score - ? END",
				types.NegativeReactionStep, types.NegativeReactionStep)
	}

	result, err := query.Where("response_content = ?", content).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply reaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	r.logger.Debug("Applied reaction",
		zap.String("ref", ref),
		zap.Bool("positive", positive),
		zap.Int64("records", affected))

	return affected, nil
}

// TopExemplars returns the best rated responses of a community that reached
// the exemplar threshold.
func (r *FeedbackModel) TopExemplars(ctx context.Context, communityID string, limit int) ([]*types.SentResponse, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.SentResponse, error) {
		var responses []*types.SentResponse

		err := r.db.NewSelect().
			Model(&responses).
			Where("community_id = ?", communityID).
			Where("quality_score >= ?", types.MinExemplarScore).
			Order("quality_score DESC", "positive_reactions DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get top exemplars: %w", err)
		}

		return responses, nil
	})
}

// GetByChannel returns every scored response sent to a channel, newest first.
func (r *FeedbackModel) GetByChannel(ctx context.Context, channelID string) ([]*types.SentResponse, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.SentResponse, error) {
		var responses []*types.SentResponse

		err := r.db.NewSelect().
			Model(&responses).
			Where("channel_id = ?", channelID).
			Order("created_at DESC", "id DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get responses: %w", err)
		}

		return responses, nil
	})
}
