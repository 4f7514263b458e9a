package responses

import (
	"time"

	"github.com/samber/lo"

	"workify/services/conversation-api/internal/domain/conversation"
)

// ParticipantResponse describes one side of a conversation.
type ParticipantResponse struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ConversationResponse is the public shape of a conversation.
type ConversationResponse struct {
	ID                    int64               `json:"id"`
	JobID                 int64               `json:"job_id"`
	ApplicationID         int64               `json:"application_id"`
	JobTitle              string              `json:"job_title,omitempty"`
	JobSeeker             ParticipantResponse `json:"job_seeker"`
	Employer              ParticipantResponse `json:"employer"`
	HasEmployerMessage    bool                `json:"has_employer_message"`
	LastMessage           *string             `json:"last_message,omitempty"`
	LastMessageSenderID   *int64              `json:"last_message_sender_id,omitempty"`
	LastMessageSenderType *string             `json:"last_message_sender_type,omitempty"`
	LastMessageAt         *time.Time          `json:"last_message_at,omitempty"`
	UnreadCountJobSeeker  int                 `json:"unread_count_job_seeker"`
	UnreadCountEmployer   int                 `json:"unread_count_employer"`
	Version               int64               `json:"version"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// MessageResponse is the public shape of a message.
type MessageResponse struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversation_id"`
	SenderID        int64     `json:"sender_id"`
	SenderType      string    `json:"sender_type"`
	Content         string    `json:"content"`
	Seen            bool      `json:"seen"`
	ClientMessageID *string   `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConversationListResponse wraps a list of conversations.
type ConversationListResponse struct {
	Data []ConversationResponse `json:"data"`
}

// MessagePageResponse is one page of messages in ascending order.
type MessagePageResponse struct {
	Data         []MessageResponse `json:"data"`
	HasMore      bool              `json:"has_more"`
	NextBeforeID *int64            `json:"next_before_id,omitempty"`
}

// SendMessageResponse is returned by send over HTTP and in websocket acks.
type SendMessageResponse struct {
	Message      MessageResponse      `json:"message"`
	Conversation ConversationResponse `json:"conversation"`
	Duplicate    bool                 `json:"duplicate"`
}

// SeenResponse is returned by markSeen.
type SeenResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Flipped      int64                `json:"flipped"`
}

// UnreadCountResponse reports conversations with unread messages for the caller.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// CreateConversationResponse is returned by the internal getOrCreate endpoint.
type CreateConversationResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Created      bool                 `json:"created"`
}

func participant(identity conversation.Identity) ParticipantResponse {
	return ParticipantResponse{
		ID:    identity.ID,
		Type:  string(identity.Type),
		Email: identity.Email,
		Name:  identity.Name,
	}
}

// MapConversation maps a domain conversation to its response.
func MapConversation(c *conversation.Conversation) ConversationResponse {
	out := ConversationResponse{
		ID:                   c.ID,
		JobID:                c.JobID,
		ApplicationID:        c.ApplicationID,
		JobTitle:             c.JobTitle,
		JobSeeker:            participant(c.JobSeeker),
		Employer:             participant(c.Employer),
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
		out.LastMessageSenderType = &senderType
	}
	return out
}

// MapConversations maps a list of conversations.
func MapConversations(items []*conversation.Conversation) ConversationListResponse {
	return ConversationListResponse{
		Data: lo.Map(items, func(c *conversation.Conversation, _ int) ConversationResponse {
			return MapConversation(c)
		}),
	}
}

// MapMessage maps a domain message to its response.
func MapMessage(m *conversation.Message) MessageResponse {
	return MessageResponse{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderType:      string(m.SenderType),
		Content:         m.Content,
		Seen:            m.Seen,
		ClientMessageID: m.ClientMessageID,
		CreatedAt:       m.CreatedAt,
	}
}

// MapMessagePage maps a page of messages.
func MapMessagePage(page *conversation.MessagePage) MessagePageResponse {
	out := MessagePageResponse{
		Data: lo.Map(page.Messages, func(m *conversation.Message, _ int) MessageResponse {
			return MapMessage(m)
		}),
		HasMore: page.HasMore,
	}
	if page.HasMore {
		out.NextBeforeID = lo.ToPtr(page.NextBeforeID)
	}
	return out
}

// MapSendResult maps the outcome of a send.
func MapSendResult(res *conversation.SendResult) SendMessageResponse {
	return SendMessageResponse{
		Message:      MapMessage(res.Message),
		Conversation: MapConversation(res.Conversation),
		Duplicate:    res.Duplicate,
	}
}

// MapSeenResult maps the outcome of markSeen.
func MapSeenResult(res *conversation.SeenResult) SeenResponse {
	return SeenResponse{
		Conversation: MapConversation(res.Conversation),
		Flipped:      res.Flipped,
	}
}
