// Package realtime defines the push contract between the messaging domain and live client sessions.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Channel is a logical destination within one identity's live sessions.
type Channel string

const (
	// ChannelMessages carries message and unread/seen events.
	ChannelMessages Channel = "messages"
	// ChannelNotifications carries non-chat alerts from the notification collaborator.
	ChannelNotifications Channel = "notifications"
)

// Valid reports whether the channel is one the registry delivers.
func (c Channel) Valid() bool {
	return c == ChannelMessages || c == ChannelNotifications
}

// EventType names the payload carried in an Event.
type EventType string

const (
	EventMessageCreated   EventType = "message.created"
	EventConversationSeen EventType = "conversation.seen"
	EventNotification     EventType = "notification"
)

// Destination addresses every live session of one identity, e.g. "USER:ana@workify.vn".
type Destination string

// NewDestination prefixes the identity type tag to its email.
func NewDestination(identityType, email string) Destination {
	return Destination(strings.ToUpper(identityType) + ":" + strings.ToLower(strings.TrimSpace(email)))
}

// Event is the frame pushed to clients. Version and message id grow in commit order per conversation.
type Event struct {
	Type           EventType       `json:"type" msgpack:"type"`
	Channel        Channel         `json:"channel" msgpack:"channel"`
	ConversationID int64           `json:"conversation_id,omitempty" msgpack:"conversation_id,omitempty"`
	Version        int64           `json:"version,omitempty" msgpack:"version,omitempty"`
	Message        *MessagePayload `json:"message,omitempty" msgpack:"message,omitempty"`
	Conversation   *Counters       `json:"conversation,omitempty" msgpack:"conversation,omitempty"`
	UnreadTotals   *UnreadTotals   `json:"unread_totals,omitempty" msgpack:"unread_totals,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
	SentAt         time.Time       `json:"sent_at" msgpack:"sent_at"`
}

// MessagePayload is the wire shape of a message inside an event.
type MessagePayload struct {
	ID             int64     `json:"id" msgpack:"id"`
	ConversationID int64     `json:"conversation_id" msgpack:"conversation_id"`
	SenderID       int64     `json:"sender_id" msgpack:"sender_id"`
	SenderType     string    `json:"sender_type" msgpack:"sender_type"`
	Content        string    `json:"content" msgpack:"content"`
	Seen           bool      `json:"seen" msgpack:"seen"`
	CreatedAt      time.Time `json:"created_at" msgpack:"created_at"`
}

// Counters is the per-conversation unread snapshot after a locked mutation.
type Counters struct {
	HasEmployerMessage   bool `json:"has_employer_message" msgpack:"has_employer_message"`
	UnreadCountJobSeeker int  `json:"unread_count_job_seeker" msgpack:"unread_count_job_seeker"`
	UnreadCountEmployer  int  `json:"unread_count_employer" msgpack:"unread_count_employer"`
}

// UnreadTotals holds the number of conversations with unread messages for each side.
type UnreadTotals struct {
	JobSeeker int64 `json:"job_seeker" msgpack:"job_seeker"`
	Employer  int64 `json:"employer" msgpack:"employer"`
}

// Publisher pushes an event to every live session of a destination.
// Delivery is best effort: an offline destination drops the event silently.
type Publisher interface {
	Publish(ctx context.Context, destination Destination, event Event)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Destination, Event) {}
