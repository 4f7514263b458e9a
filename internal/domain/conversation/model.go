package conversation

import (
	"strings"
	"time"

	"workify/services/conversation-api/internal/domain/realtime"
)

// SenderType tags which identity table a participant comes from.
type SenderType string

const (
	SenderTypeUser     SenderType = "USER"
	SenderTypeEmployer SenderType = "EMPLOYER"
)

// Valid reports whether t is a known participant type.
func (t SenderType) Valid() bool {
	return t == SenderTypeUser || t == SenderTypeEmployer
}

// Other returns the opposite participant type.
func (t SenderType) Other() SenderType {
	if t == SenderTypeEmployer {
		return SenderTypeUser
	}
	return SenderTypeEmployer
}

// ParseSenderType maps a role claim or header onto a participant type.
func ParseSenderType(raw string) (SenderType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "USER", "JOB_SEEKER", "CANDIDATE", "ROLE_USER":
		return SenderTypeUser, true
	case "EMPLOYER", "RECRUITER", "ROLE_EMPLOYER":
		return SenderTypeEmployer, true
	default:
		return "", false
	}
}

// Identity is the tagged participant reference {kind, id}. Email addresses live sessions.
type Identity struct {
	Type  SenderType
	ID    int64
	Email string
	Name  string
}

// Destination returns the realtime address of every session of this identity.
func (i Identity) Destination() realtime.Destination {
	return realtime.NewDestination(string(i.Type), i.Email)
}

// Principal is the caller as the transport layer knows it, before identity resolution.
type Principal struct {
	Type  string
	Email string
}

// Conversation is the unique channel between one job-seeker and one employer for an application.
type Conversation struct {
	ID                    int64
	JobID                 int64
	ApplicationID         int64
	JobTitle              string
	JobSeeker             Identity
	Employer              Identity
	HasEmployerMessage    bool
	LastMessage           *string
	LastMessageSenderID   *int64
	LastMessageSenderType *SenderType
	LastMessageAt         *time.Time
	UnreadCountJobSeeker  int
	UnreadCountEmployer   int
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsParticipant reports whether the identity is the job-seeker or the employer of c.
func (c *Conversation) IsParticipant(caller Identity) bool {
	switch caller.Type {
	case SenderTypeUser:
		return c.JobSeeker.ID == caller.ID
	case SenderTypeEmployer:
		return c.Employer.ID == caller.ID
	default:
		return false
	}
}

// Participant returns the participant of the given type.
func (c *Conversation) Participant(t SenderType) Identity {
	if t == SenderTypeEmployer {
		return c.Employer
	}
	return c.JobSeeker
}

// UnreadFor returns the unread counter owned by participant type t.
func (c *Conversation) UnreadFor(t SenderType) int {
	if t == SenderTypeEmployer {
		return c.UnreadCountEmployer
	}
	return c.UnreadCountJobSeeker
}

// RecordMessage applies a newly appended message to the summary, gate and counters.
// The gate only ever opens.
func (c *Conversation) RecordMessage(m *Message) {
	content := m.Content
	senderID := m.SenderID
	senderType := m.SenderType
	sentAt := m.CreatedAt

	c.LastMessage = &content
	c.LastMessageSenderID = &senderID
	c.LastMessageSenderType = &senderType
	c.LastMessageAt = &sentAt

	switch m.SenderType {
	case SenderTypeEmployer:
		c.HasEmployerMessage = true
		c.UnreadCountJobSeeker++
	case SenderTypeUser:
		c.UnreadCountEmployer++
	}
	c.touch(m.CreatedAt)
}

// ApplySeen decrements the reader's own counter by the number of messages flipped, floored at 0.
func (c *Conversation) ApplySeen(reader SenderType, flipped int64, at time.Time) {
	if flipped <= 0 {
		return
	}
	switch reader {
	case SenderTypeUser:
		c.UnreadCountJobSeeker = floorSub(c.UnreadCountJobSeeker, flipped)
	case SenderTypeEmployer:
		c.UnreadCountEmployer = floorSub(c.UnreadCountEmployer, flipped)
	}
	c.touch(at)
}

// SetCounters overwrites both counters with recounted values.
func (c *Conversation) SetCounters(jobSeeker, employer int64, at time.Time) bool {
	if int64(c.UnreadCountJobSeeker) == jobSeeker && int64(c.UnreadCountEmployer) == employer {
		return false
	}
	c.UnreadCountJobSeeker = int(jobSeeker)
	c.UnreadCountEmployer = int(employer)
	c.touch(at)
	return true
}

// Counters returns the realtime snapshot of the gate and counters.
func (c *Conversation) Counters() *realtime.Counters {
	return &realtime.Counters{
		HasEmployerMessage:   c.HasEmployerMessage,
		UnreadCountJobSeeker: c.UnreadCountJobSeeker,
		UnreadCountEmployer:  c.UnreadCountEmployer,
	}
}

func (c *Conversation) touch(at time.Time) {
	c.Version++
	c.UpdatedAt = at
}

func floorSub(current int, n int64) int {
	next := int64(current) - n
	if next < 0 {
		return 0
	}
	return int(next)
}

// Message is one immutable entry of a conversation log. Only Seen ever changes.
type Message struct {
	ID              int64
	ConversationID  int64
	SenderID        int64
	SenderType      SenderType
	Content         string
	Seen            bool
	ClientMessageID *string
	CreatedAt       time.Time
}

// Payload returns the realtime wire shape of m.
func (m *Message) Payload() *realtime.MessagePayload {
	return &realtime.MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderType:     string(m.SenderType),
		Content:        m.Content,
		Seen:           m.Seen,
		CreatedAt:      m.CreatedAt,
	}
}

// Page selects a window of the message log, newest window first.
type Page struct {
	BeforeID int64
	Limit    int
}

// MessagePage is one window of messages in ascending creation order.
type MessagePage struct {
	Messages     []*Message
	HasMore      bool
	NextBeforeID int64
}

// SendParams describes one send call. ClientMessageID is an optional idempotency key.
type SendParams struct {
	ConversationID  int64
	Caller          Identity
	Content         string `validate:"required"`
	ClientMessageID string `validate:"omitempty,max=64,printascii"`
}

// SendResult is the outcome of Send. Duplicate marks a replay of an earlier send.
type SendResult struct {
	Message      *Message
	Conversation *Conversation
	Duplicate    bool
}

// SeenResult is the outcome of MarkSeen.
type SeenResult struct {
	Conversation *Conversation
	Flipped      int64
}
