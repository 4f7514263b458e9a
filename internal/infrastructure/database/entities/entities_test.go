package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"workify/services/conversation-api/internal/domain/conversation"
)

func TestConversationRoundTripKeepsSenderTag(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	last := "Hello"
	senderID := int64(3)
	senderType := conversation.SenderTypeEmployer

	domainConv := &conversation.Conversation{
		ID:                    11,
		JobID:                 7,
		ApplicationID:         42,
		JobSeeker:             conversation.Identity{Type: conversation.SenderTypeUser, ID: 5, Email: "ana@workify.vn"},
		Employer:              conversation.Identity{Type: conversation.SenderTypeEmployer, ID: 3, Email: "hr@acme.io"},
		HasEmployerMessage:    true,
		LastMessage:           &last,
		LastMessageSenderID:   &senderID,
		LastMessageSenderType: &senderType,
		LastMessageAt:         &now,
		UnreadCountJobSeeker:  1,
		Version:               4,
	}

	row := NewSchemaConversation(domainConv)
	assert.Equal(t, "EMPLOYER", *row.LastMessageSenderType)
	assert.Equal(t, int64(5), row.JobSeekerID)

	back := row.EtoD()
	assert.Equal(t, domainConv.JobSeeker, back.JobSeeker)
	assert.Equal(t, domainConv.Employer, back.Employer)
	assert.Equal(t, conversation.SenderTypeEmployer, *back.LastMessageSenderType)
	assert.Equal(t, 1, back.UnreadCountJobSeeker)
	assert.Equal(t, int64(4), back.Version)
}

func TestConversationWithoutMessagesHasNilSummary(t *testing.T) {
	back := (&Conversation{ID: 1, JobSeekerID: 2, EmployerID: 3}).EtoD()
	assert.Nil(t, back.LastMessage)
	assert.Nil(t, back.LastMessageSenderType)
	assert.False(t, back.HasEmployerMessage)
}
