package commands_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/robalyx/chorus/cmd/db/commands"
	"github.com/robalyx/chorus/internal/database"
	"github.com/robalyx/chorus/internal/database/migrations"
	"github.com/robalyx/chorus/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) *commands.CLIDependencies {
	t.Helper()

	logger := zap.NewNop()

	db, err := database.NewSQLiteConnection(t.Context(), ":memory:", logger, database.Options{AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &commands.CLIDependencies{
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Logger:   logger,
		Output:   &bytes.Buffer{},
	}
}

func output(deps *commands.CLIDependencies) string {
	return deps.Output.(*bytes.Buffer).String()
}

func TestExemplarsCommand(t *testing.T) {
	t.Parallel()

	deps := setupTest(t)
	require.NoError(t, deps.DB.Model().Feedback().RecordSent(t.Context(), "hola?", "buenas!", "guild-1", "chan-1"))

	err := commands.NewApp(deps).Run(t.Context(), []string{"db", "exemplars", "--community", "guild-1"})
	require.NoError(t, err)

	err = commands.NewApp(deps).Run(t.Context(), []string{"db", "exemplars", "--community", "guild-1", "--limit", "0"})
	require.ErrorIs(t, err, commands.ErrInvalidLimit)
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	deps := setupTest(t)
	require.NoError(t, deps.DB.Model().Feedback().RecordSent(t.Context(), "hola?", "buenas!", "guild-1", "chan-1"))

	require.NoError(t, commands.NewApp(deps).Run(t.Context(), []string{"db", "status"}))
	require.NoError(t, commands.NewApp(deps).Run(t.Context(), []string{"db", "migrate"}))

	out := output(deps)
	assert.Contains(t, out, "Schema version: 20261014000000_initial_schema (group 1)")
	assert.Contains(t, out, "[applied] 20261014000000_initial_schema")
	assert.NotContains(t, out, "pending, run")
	assert.Contains(t, out, "sent_responses  1 rows")
	assert.Contains(t, out, "messages        0 rows")
}

func TestProfileCommand(t *testing.T) {
	t.Parallel()

	deps := setupTest(t)
	ctx := t.Context()
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, deps.DB.Model().User().TouchProfile(ctx, "ana-1", "Ana", at))
	require.NoError(t, deps.DB.Model().User().TrackTopic(ctx, "ana-1", "Ana", "torneos", at))

	require.NoError(t, commands.NewApp(deps).Run(ctx, []string{"db", "profile", "--user", "ana-1"}))
	require.NoError(t, commands.NewApp(deps).Run(ctx, []string{"db", "profile", "--user", "nadie"}))

	out := output(deps)
	assert.Contains(t, out, "Ana (ana-1)")
	assert.Contains(t, out, "interactions: 1")
	assert.Contains(t, out, "topic torneos x1")
	assert.Contains(t, out, "Member nadie has not been seen")
}

func TestMessageCommand(t *testing.T) {
	t.Parallel()

	deps := setupTest(t)
	ctx := t.Context()

	require.NoError(t, deps.DB.Model().Message().SaveMessage(ctx, &types.Message{
		MessageRef: "bot-1", CommunityID: "guild-1", ChannelID: "chan-1",
		AuthorID: "self", AuthorName: "Mia", Content: "el directo es el jueves",
		IsBotResponse: true, CreatedAt: time.Now(),
	}))

	require.NoError(t, commands.NewApp(deps).Run(ctx, []string{"db", "message", "--ref", "bot-1"}))
	require.NoError(t, commands.NewApp(deps).Run(ctx, []string{"db", "message", "--ref", "otro"}))

	out := output(deps)
	assert.Contains(t, out, "el directo es el jueves\n")
	assert.Contains(t, out, "No persona reply with ref otro")
}
