package requests

import "encoding/json"

// SendMessageRequest is the body of POST /v1/conversations/:conversation_id/messages.
type SendMessageRequest struct {
	Content         string `json:"content" binding:"required"`
	ClientMessageID string `json:"client_message_id,omitempty" binding:"omitempty,max=64"`
}

// ListMessagesQuery selects a page of messages, newest page first.
type ListMessagesQuery struct {
	BeforeID int64 `form:"before_id" binding:"omitempty,gte=0"`
	Limit    int   `form:"limit" binding:"omitempty,gte=0"`
}

// CreateConversationRequest is the body of POST /v1/internal/conversations.
type CreateConversationRequest struct {
	JobID         int64 `json:"job_id" binding:"required,gt=0"`
	ApplicationID int64 `json:"application_id" binding:"required,gt=0"`
	EmployerID    int64 `json:"employer_id" binding:"required,gt=0"`
}

// PushNotificationRequest is the body of POST /v1/internal/notifications.
type PushNotificationRequest struct {
	RecipientType  string          `json:"recipient_type" binding:"required,oneof=USER EMPLOYER"`
	RecipientEmail string          `json:"recipient_email" binding:"required,email"`
	Payload        json.RawMessage `json:"payload" binding:"required"`
}

// SocketFrame is one inbound websocket frame.
type SocketFrame struct {
	Action          string `json:"action"`
	Ref             string `json:"ref,omitempty"`
	ConversationID  int64  `json:"conversation_id,omitempty"`
	Content         string `json:"content,omitempty"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}
