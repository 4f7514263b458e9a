package handlers_test

import (
	"context"
	"sync"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/domain/realtime"
)

// MockManager is a mock implementation of conversation.Manager for testing.
type MockManager struct {
	GetOrCreateFunc              func(ctx context.Context, jobID, applicationID, employerID int64) (*conversation.Conversation, bool, error)
	GetByIDFunc                  func(ctx context.Context, id int64) (*conversation.Conversation, error)
	GetForParticipantFunc        func(ctx context.Context, id int64, caller conversation.Identity) (*conversation.Conversation, error)
	GetByApplicationIDFunc       func(ctx context.Context, applicationID int64, caller conversation.Identity) (*conversation.Conversation, error)
	ListForParticipantFunc       func(ctx context.Context, caller conversation.Identity) ([]*conversation.Conversation, error)
	IsParticipantFunc            func(ctx context.Context, conversationID int64, caller conversation.Identity) (bool, error)
	CountUnreadConversationsFunc func(ctx context.Context, caller conversation.Identity) (int64, error)
	ResolveCallerFunc            func(ctx context.Context, principal conversation.Principal) (conversation.Identity, error)
}

func (m *MockManager) GetOrCreate(ctx context.Context, jobID, applicationID, employerID int64) (*conversation.Conversation, bool, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, jobID, applicationID, employerID)
	}
	return nil, false, nil
}

func (m *MockManager) GetByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockManager) GetForParticipant(ctx context.Context, id int64, caller conversation.Identity) (*conversation.Conversation, error) {
	if m.GetForParticipantFunc != nil {
		return m.GetForParticipantFunc(ctx, id, caller)
	}
	return nil, nil
}

func (m *MockManager) GetByApplicationID(ctx context.Context, applicationID int64, caller conversation.Identity) (*conversation.Conversation, error) {
	if m.GetByApplicationIDFunc != nil {
		return m.GetByApplicationIDFunc(ctx, applicationID, caller)
	}
	return nil, nil
}

func (m *MockManager) ListForParticipant(ctx context.Context, caller conversation.Identity) ([]*conversation.Conversation, error) {
	if m.ListForParticipantFunc != nil {
		return m.ListForParticipantFunc(ctx, caller)
	}
	return nil, nil
}

func (m *MockManager) IsParticipant(ctx context.Context, conversationID int64, caller conversation.Identity) (bool, error) {
	if m.IsParticipantFunc != nil {
		return m.IsParticipantFunc(ctx, conversationID, caller)
	}
	return false, nil
}

func (m *MockManager) CountUnreadConversations(ctx context.Context, caller conversation.Identity) (int64, error) {
	if m.CountUnreadConversationsFunc != nil {
		return m.CountUnreadConversationsFunc(ctx, caller)
	}
	return 0, nil
}

// ResolveCaller defaults to a fixed id per participant type.
func (m *MockManager) ResolveCaller(ctx context.Context, principal conversation.Principal) (conversation.Identity, error) {
	if m.ResolveCallerFunc != nil {
		return m.ResolveCallerFunc(ctx, principal)
	}
	senderType := conversation.SenderType(principal.Type)
	id := int64(5)
	if senderType == conversation.SenderTypeEmployer {
		id = 3
	}
	return conversation.Identity{Type: senderType, ID: id, Email: principal.Email}, nil
}

// MockEngine is a mock implementation of conversation.Engine for testing.
type MockEngine struct {
	SendFunc        func(ctx context.Context, params conversation.SendParams) (*conversation.SendResult, error)
	MarkSeenFunc    func(ctx context.Context, conversationID int64, caller conversation.Identity) (*conversation.SeenResult, error)
	GetMessagesFunc func(ctx context.Context, conversationID int64, caller conversation.Identity, page conversation.Page) (*conversation.MessagePage, error)
}

func (m *MockEngine) Send(ctx context.Context, params conversation.SendParams) (*conversation.SendResult, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockEngine) MarkSeen(ctx context.Context, conversationID int64, caller conversation.Identity) (*conversation.SeenResult, error) {
	if m.MarkSeenFunc != nil {
		return m.MarkSeenFunc(ctx, conversationID, caller)
	}
	return nil, nil
}

func (m *MockEngine) GetMessages(ctx context.Context, conversationID int64, caller conversation.Identity, page conversation.Page) (*conversation.MessagePage, error) {
	if m.GetMessagesFunc != nil {
		return m.GetMessagesFunc(ctx, conversationID, caller, page)
	}
	return nil, nil
}

type publishedEvent struct {
	destination realtime.Destination
	event       realtime.Event
}

// MockPublisher records every published event.
type MockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *MockPublisher) Publish(_ context.Context, destination realtime.Destination, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{destination: destination, event: event})
}

func (p *MockPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
