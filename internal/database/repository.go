package database

import (
	"github.com/robalyx/chorus/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	message  *models.MessageModel
	user     *models.UserModel
	feedback *models.FeedbackModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		message:  models.NewMessage(db, logger),
		user:     models.NewUser(db, logger),
		feedback: models.NewFeedback(db, logger),
	}
}

// Message returns the message log model.
func (r *Repository) Message() *models.MessageModel {
	return r.message
}

// User returns the user profile model.
func (r *Repository) User() *models.UserModel {
	return r.user
}

// Feedback returns the sent response feedback model.
func (r *Repository) Feedback() *models.FeedbackModel {
	return r.feedback
}
