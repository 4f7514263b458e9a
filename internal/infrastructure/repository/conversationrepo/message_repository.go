package conversationrepo

import (
	"context"

	"gorm.io/gorm"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/database/entities"
)

// MessageRepository reads the message log without locking.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs the message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

var _ domain.MessageRepository = (*MessageRepository)(nil)

// List returns one keyset page in ascending id order and whether older messages remain.
func (r *MessageRepository) List(ctx context.Context, conversationID int64, page domain.Page) ([]*domain.Message, bool, error) {
	var rows []entities.Message
	if err := pageQuery(r.db.WithContext(ctx), conversationID, page).Find(&rows).Error; err != nil {
		return nil, false, dbError(ctx, "failed to list messages", err, "list-messages-error")
	}

	hasMore := len(rows) > page.Limit
	if hasMore {
		rows = rows[:page.Limit]
	}

	out := make([]*domain.Message, len(rows))
	for i := range rows {
		out[len(rows)-1-i] = rows[i].EtoD()
	}
	return out, hasMore, nil
}

// pageQuery selects newest first and fetches one extra row to detect another page.
func pageQuery(db *gorm.DB, conversationID int64, page domain.Page) *gorm.DB {
	query := db.Model(&entities.Message{}).Where("conversation_id = ?", conversationID)
	if page.BeforeID > 0 {
		query = query.Where("id < ?", page.BeforeID)
	}
	return query.Order("id DESC").Limit(page.Limit + 1)
}
