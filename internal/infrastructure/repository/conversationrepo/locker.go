package conversationrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/database/entities"
	"workify/services/conversation-api/internal/infrastructure/metrics"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

const driverName = "postgres"

// Locker serializes writers of one conversation with a row lock held for one transaction.
type Locker struct {
	db      *gorm.DB
	timeout time.Duration
	log     zerolog.Logger
}

// NewLocker constructs the row locker. timeout bounds the wait for the row lock.
func NewLocker(db *gorm.DB, timeout time.Duration, log zerolog.Logger) *Locker {
	return &Locker{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("component", "conversation-locker").Logger(),
	}
}

var _ domain.Locker = (*Locker)(nil)

// WithConversationLock runs fn inside a transaction that holds SELECT ... FOR UPDATE on the row.
func (l *Locker) WithConversationLock(ctx context.Context, conversationID int64, fn domain.LockedFunc) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(lockTimeoutStatement(l.timeout)).Error; err != nil {
			return dbError(ctx, "failed to set lock timeout", err, "set-lock-timeout-error")
		}

		started := time.Now()
		var row entities.Conversation
		if err := lockQuery(tx, conversationID).Take(&row).Error; err != nil {
			waited := time.Since(started).Seconds()
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				metrics.RecordLockWait(driverName, "not_found", waited)
				return domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrConversationNotFound, nil)
			case isLockTimeout(err):
				metrics.RecordLockWait(driverName, "busy", waited)
				l.log.Warn().Int64("conversation_id", conversationID).Dur("timeout", l.timeout).Msg("conversation lock wait timed out")
				return domain.NewBusy(ctx, platformerrors.LayerRepository, conversationID, err)
			default:
				metrics.RecordLockWait(driverName, "error", waited)
				return dbError(ctx, "failed to lock conversation", err, "lock-conversation-error")
			}
		}
		metrics.RecordLockWait(driverName, "acquired", time.Since(started).Seconds())

		return fn(ctx, row.EtoD(), &lockedTx{db: tx})
	})
	return passThrough(ctx, "failed to commit conversation transaction", err, "commit-conversation-error")
}

func lockQuery(tx *gorm.DB, conversationID int64) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", conversationID)
}

// lockTimeoutStatement renders SET LOCAL, which takes no bind parameters.
func lockTimeoutStatement(timeout time.Duration) string {
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

type lockedTx struct {
	db *gorm.DB
}

func (t *lockedTx) FindMessageByClientID(ctx context.Context, conversationID int64, sender domain.Identity, clientMessageID string) (*domain.Message, error) {
	var row entities.Message
	err := clientMessageQuery(t.db.WithContext(ctx), conversationID, sender, clientMessageID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(ctx, "failed to look up client message id", err, "find-client-message-error")
	}
	return row.EtoD(), nil
}

func clientMessageQuery(db *gorm.DB, conversationID int64, sender domain.Identity, clientMessageID string) *gorm.DB {
	return db.Where("conversation_id = ? AND sender_type = ? AND sender_id = ? AND client_message_id = ?",
		conversationID, string(sender.Type), sender.ID, clientMessageID)
}

func (t *lockedTx) InsertMessage(ctx context.Context, msg *domain.Message) error {
	row := entities.NewSchemaMessage(msg)
	row.ID = 0
	if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"client_message_id already used by this sender", err, "duplicate-client-message-id")
		}
		return dbError(ctx, "failed to insert message", err, "insert-message-error")
	}
	msg.ID = row.ID
	return nil
}

func (t *lockedTx) MarkSeen(ctx context.Context, conversationID int64, sender domain.SenderType) (int64, error) {
	result := unseenQuery(t.db.WithContext(ctx), conversationID, sender).Update("seen", true)
	if result.Error != nil {
		return 0, dbError(ctx, "failed to mark messages seen", result.Error, "mark-seen-error")
	}
	return result.RowsAffected, nil
}

func (t *lockedTx) CountUnseen(ctx context.Context, conversationID int64, sender domain.SenderType) (int64, error) {
	var count int64
	if err := unseenQuery(t.db.WithContext(ctx), conversationID, sender).Count(&count).Error; err != nil {
		return 0, dbError(ctx, "failed to count unseen messages", err, "count-unseen-error")
	}
	return count, nil
}

func unseenQuery(db *gorm.DB, conversationID int64, sender domain.SenderType) *gorm.DB {
	return db.Model(&entities.Message{}).
		Where("conversation_id = ? AND sender_type = ? AND seen = ?", conversationID, string(sender), false)
}

func (t *lockedTx) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	result := t.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(conversationUpdates(conv))
	if result.Error != nil {
		return dbError(ctx, "failed to save conversation", result.Error, "save-conversation-error")
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrConversationNotFound, nil)
	}
	return nil
}

// conversationUpdates lists every column a locked mutation may touch. A map keeps zero values.
func conversationUpdates(conv *domain.Conversation) map[string]any {
	row := entities.NewSchemaConversation(conv)
	return map[string]any{
		"has_employer_message":     row.HasEmployerMessage,
		"last_message":             row.LastMessage,
		"last_message_sender_id":   row.LastMessageSenderID,
		"last_message_sender_type": row.LastMessageSenderType,
		"last_message_at":          row.LastMessageAt,
		"unread_count_job_seeker":  row.UnreadCountJobSeeker,
		"unread_count_employer":    row.UnreadCountEmployer,
		"version":                  row.Version,
		"updated_at":               row.UpdatedAt,
	}
}
