package entities

import (
	"time"

	"workify/services/conversation-api/internal/domain/conversation"
)

// Conversation is the row shape of the conversations table.
type Conversation struct {
	ID                    int64      `gorm:"primaryKey;autoIncrement"`
	JobID                 int64      `gorm:"not null;uniqueIndex:uq_conversations_job_application"`
	ApplicationID         int64      `gorm:"not null;uniqueIndex:uq_conversations_job_application"`
	JobTitle              string     `gorm:"type:varchar(255);not null;default:''"`
	JobSeekerID           int64      `gorm:"not null"`
	JobSeekerEmail        string     `gorm:"type:varchar(255);not null"`
	JobSeekerName         string     `gorm:"type:varchar(255);not null;default:''"`
	EmployerID            int64      `gorm:"not null"`
	EmployerEmail         string     `gorm:"type:varchar(255);not null"`
	EmployerName          string     `gorm:"type:varchar(255);not null;default:''"`
	HasEmployerMessage    bool       `gorm:"not null;default:false"`
	LastMessage           *string    `gorm:"type:text"`
	LastMessageSenderID   *int64     `gorm:"column:last_message_sender_id"`
	LastMessageSenderType *string    `gorm:"type:varchar(16)"`
	LastMessageAt         *time.Time `gorm:"column:last_message_at"`
	UnreadCountJobSeeker  int        `gorm:"not null;default:0"`
	UnreadCountEmployer   int        `gorm:"not null;default:0"`
	Version               int64      `gorm:"not null;default:0"`
	CreatedAt             time.Time  `gorm:"not null"`
	UpdatedAt             time.Time  `gorm:"not null"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// NewSchemaConversation converts a domain conversation into its row.
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	row := &Conversation{
		ID:                   c.ID,
		JobID:                c.JobID,
		ApplicationID:        c.ApplicationID,
		JobTitle:             c.JobTitle,
		JobSeekerID:          c.JobSeeker.ID,
		JobSeekerEmail:       c.JobSeeker.Email,
		JobSeekerName:        c.JobSeeker.Name,
		EmployerID:           c.Employer.ID,
		EmployerEmail:        c.Employer.Email,
		EmployerName:         c.Employer.Name,
		HasEmployerMessage:   c.HasEmployerMessage,
		LastMessage:          c.LastMessage,
		LastMessageSenderID:  c.LastMessageSenderID,
		LastMessageAt:        c.LastMessageAt,
		UnreadCountJobSeeker: c.UnreadCountJobSeeker,
		UnreadCountEmployer:  c.UnreadCountEmployer,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if c.LastMessageSenderType != nil {
		senderType := string(*c.LastMessageSenderType)
		row.LastMessageSenderType = &senderType
	}
	return row
}

// EtoD converts the row into a domain conversation.
func (c *Conversation) EtoD() *conversation.Conversation {
	out := &conversation.Conversation{
		ID:            c.ID,
		JobID:         c.JobID,
		ApplicationID: c.ApplicationID,
		JobTitle:      c.JobTitle,
		JobSeeker: conversation.Identity{
			Type:  conversation.SenderTypeUser,
			ID:    c.JobSeekerID,
			Email: c.JobSeekerEmail,
			Name:  c.JobSeekerName,
		},
		Employer: conversation.Identity{
			Type:  conversation.SenderTypeEmployer,
			ID:    c.EmployerID,
			Email: c.EmployerEmail,
			Name:  c.EmployerName,
		},
		HasEmployerMessage:   c.HasEmployerMessage,
		LastMessage:          c.LastMessage,
		LastMessageSenderID:  c.LastMessageSenderID,
		LastMessageAt:        c.LastMessageAt,
		UnreadCountJobSeeker: c.UnreadCountJobSeeker,
		UnreadCountEmployer:  c.UnreadCountEmployer,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if c.LastMessageSenderType != nil {
		senderType := conversation.SenderType(*c.LastMessageSenderType)
		out.LastMessageSenderType = &senderType
	}
	return out
}
