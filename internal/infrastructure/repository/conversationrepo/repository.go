package conversationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/database/entities"
	"workify/services/conversation-api/internal/infrastructure/metrics"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

// Repository persists conversations in PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs the conversation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// FindByID retrieves a conversation by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByJobAndApplication retrieves the conversation of a (job, application) pair.
func (r *Repository) FindByJobAndApplication(ctx context.Context, jobID, applicationID int64) (*domain.Conversation, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("job_id = ? AND application_id = ?", jobID, applicationID))
}

// FindByApplicationID retrieves the conversation seeded by an application.
func (r *Repository) FindByApplicationID(ctx context.Context, applicationID int64) (*domain.Conversation, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("application_id = ?", applicationID).Order("id ASC"))
}

func (r *Repository) first(ctx context.Context, query *gorm.DB) (*domain.Conversation, error) {
	var row entities.Conversation
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrConversationNotFound, nil)
		}
		return nil, dbError(ctx, "failed to find conversation", err, "find-conversation-error")
	}
	return row.EtoD(), nil
}

// CreateIfAbsent inserts the conversation unless its (job, application) pair already exists.
// The losing side of a concurrent insert re-reads the winning row.
func (r *Repository) CreateIfAbsent(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, bool, error) {
	now := time.Now().UTC()
	row := entities.NewSchemaConversation(conv)
	row.ID = 0
	row.HasEmployerMessage = false
	row.UnreadCountJobSeeker = 0
	row.UnreadCountEmployer = 0
	row.Version = 0
	row.CreatedAt = now
	row.UpdatedAt = now

	result := insertIfAbsent(r.db.WithContext(ctx), row)
	if result.Error != nil {
		return nil, false, dbError(ctx, "failed to create conversation", result.Error, "create-conversation-error")
	}
	if result.RowsAffected == 1 {
		metrics.ConversationsCreated.Inc()
		return row.EtoD(), true, nil
	}

	existing, err := r.FindByJobAndApplication(ctx, conv.JobID, conv.ApplicationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func insertIfAbsent(db *gorm.DB, row *entities.Conversation) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "application_id"}},
		DoNothing: true,
	}).Create(row)
}

// ListByParticipant returns the participant's conversations, most recently updated first.
func (r *Repository) ListByParticipant(ctx context.Context, participant domain.Identity) ([]*domain.Conversation, error) {
	var rows []entities.Conversation
	if err := participantQuery(r.db.WithContext(ctx), participant).Find(&rows).Error; err != nil {
		return nil, dbError(ctx, "failed to list conversations", err, "list-conversations-error")
	}

	out := make([]*domain.Conversation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out, nil
}

func participantQuery(db *gorm.DB, participant domain.Identity) *gorm.DB {
	column := "job_seeker_id"
	if participant.Type == domain.SenderTypeEmployer {
		column = "employer_id"
	}
	return db.Model(&entities.Conversation{}).
		Where(column+" = ?", participant.ID).
		Order("updated_at DESC, id DESC")
}

// CountUnread counts conversations where the participant's own counter is positive.
func (r *Repository) CountUnread(ctx context.Context, participant domain.Identity) (int64, error) {
	var count int64
	if err := unreadQuery(r.db.WithContext(ctx), participant).Count(&count).Error; err != nil {
		return 0, dbError(ctx, "failed to count unread conversations", err, "count-unread-error")
	}
	return count, nil
}

func unreadQuery(db *gorm.DB, participant domain.Identity) *gorm.DB {
	if participant.Type == domain.SenderTypeEmployer {
		return db.Model(&entities.Conversation{}).Where("employer_id = ? AND unread_count_employer > 0", participant.ID)
	}
	return db.Model(&entities.Conversation{}).Where("job_seeker_id = ? AND unread_count_job_seeker > 0", participant.ID)
}

const driftedSQL = `SELECT c.id
FROM conversations c
LEFT JOIN LATERAL (
    SELECT COUNT(*) FILTER (WHERE m.sender_type = 'EMPLOYER') AS job_seeker,
           COUNT(*) FILTER (WHERE m.sender_type = 'USER') AS employer
    FROM messages m
    WHERE m.conversation_id = c.id AND m.seen = FALSE
) unseen ON TRUE
WHERE c.unread_count_job_seeker <> unseen.job_seeker
   OR c.unread_count_employer <> unseen.employer
ORDER BY c.id
LIMIT ?`

// ListDrifted returns conversations whose counters disagree with their unseen messages.
func (r *Repository) ListDrifted(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []int64
	if err := r.db.WithContext(ctx).Raw(driftedSQL, limit).Scan(&ids).Error; err != nil {
		return nil, dbError(ctx, "failed to list drifted conversations", err, "list-drifted-error")
	}
	return ids, nil
}

// Ping checks database connectivity for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
