package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/chorus/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Message)(nil),
			(*types.SentResponse)(nil),
			(*types.UserProfile)(nil),
			(*types.UserTopic)(nil),
		}

		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		indexes := []struct {
			model   any
			name    string
			columns []string
			unique  bool
		}{
			{(*types.Message)(nil), "idx_messages_channel", []string{"channel_id", "created_at"}, false},
			{(*types.Message)(nil), "idx_messages_author", []string{"author_id", "created_at"}, false},
			{(*types.Message)(nil), "idx_messages_community", []string{"community_id", "created_at"}, false},
			{(*types.Message)(nil), "idx_messages_reply_to", []string{"reply_to_ref"}, false},
			{(*types.SentResponse)(nil), "idx_sent_responses_quality", []string{"community_id", "quality_score"}, false},
			{(*types.SentResponse)(nil), "idx_sent_responses_content", []string{"response_content"}, false},
			{(*types.UserTopic)(nil), "idx_user_topics_user_topic", []string{"user_id", "topic"}, true},
		}

		for _, index := range indexes {
			query := db.NewCreateIndex().
				Model(index.model).
				Index(index.name).
				Column(index.columns...).
				IfNotExists()
			if index.unique {
				query = query.Unique()
			}

			if _, err := query.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create index %s: %w", index.name, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.UserTopic)(nil),
			(*types.UserProfile)(nil),
			(*types.SentResponse)(nil),
			(*types.Message)(nil),
		}

		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
