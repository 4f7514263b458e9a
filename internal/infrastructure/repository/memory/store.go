// Package memory keeps conversations and messages in process. It backs STORAGE_DRIVER=memory
// and the concurrency tests of the messaging engine.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/metrics"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

const driverName = "memory"

var errLockTimeout = errors.New("conversation lock wait timed out")

type pairKey struct {
	jobID         int64
	applicationID int64
}

// Store implements the conversation, message and locker contracts over maps.
type Store struct {
	mu            sync.RWMutex
	conversations map[int64]*domain.Conversation
	byPair        map[pairKey]int64
	messages      map[int64][]*domain.Message

	nextConversationID atomic.Int64
	nextMessageID      atomic.Int64

	locks       *keyedMutex
	lockTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewStore creates an empty store. lockTimeout bounds the wait for a conversation lock.
func NewStore(lockTimeout time.Duration, log zerolog.Logger) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{
		conversations: make(map[int64]*domain.Conversation),
		byPair:        make(map[pairKey]int64),
		messages:      make(map[int64][]*domain.Message),
		locks:         newKeyedMutex(),
		lockTimeout:   lockTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log.With().Str("component", "memory-store").Logger(),
	}
}

var (
	_ domain.Repository        = (*Store)(nil)
	_ domain.MessageRepository = (*Store)(nil)
	_ domain.Locker            = (*Store)(nil)
)

func notFound(ctx context.Context) error {
	return domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrConversationNotFound, nil)
}

func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, notFound(ctx)
	}
	return cloneConversation(conv), nil
}

func (s *Store) FindByJobAndApplication(ctx context.Context, jobID, applicationID int64) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[pairKey{jobID, applicationID}]
	if !ok {
		return nil, notFound(ctx)
	}
	return cloneConversation(s.conversations[id]), nil
}

func (s *Store) FindByApplicationID(ctx context.Context, applicationID int64) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Conversation
	for _, conv := range s.conversations {
		if conv.ApplicationID != applicationID {
			continue
		}
		if found == nil || conv.ID < found.ID {
			found = conv
		}
	}
	if found == nil {
		return nil, notFound(ctx)
	}
	return cloneConversation(found), nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{conv.JobID, conv.ApplicationID}
	if id, ok := s.byPair[key]; ok {
		return cloneConversation(s.conversations[id]), false, nil
	}

	now := s.now()
	stored := cloneConversation(conv)
	stored.ID = s.nextConversationID.Add(1)
	stored.HasEmployerMessage = false
	stored.UnreadCountJobSeeker = 0
	stored.UnreadCountEmployer = 0
	stored.Version = 0
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.conversations[stored.ID] = stored
	s.byPair[key] = stored.ID
	metrics.ConversationsCreated.Inc()
	return cloneConversation(stored), true, nil
}

func (s *Store) ListByParticipant(_ context.Context, participant domain.Identity) ([]*domain.Conversation, error) {
	s.mu.RLock()
	out := make([]*domain.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.IsParticipant(participant) {
			out = append(out, cloneConversation(conv))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CountUnread(_ context.Context, participant domain.Identity) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, conv := range s.conversations {
		if conv.IsParticipant(participant) && conv.UnreadFor(participant.Type) > 0 {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListDrifted(_ context.Context, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0)
	for id, conv := range s.conversations {
		jobSeeker, employer := unseenCounts(s.messages[id])
		if int64(conv.UnreadCountJobSeeker) != jobSeeker || int64(conv.UnreadCountEmployer) != employer {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// List returns one keyset page in ascending id order.
func (s *Store) List(_ context.Context, conversationID int64, page domain.Page) ([]*domain.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[conversationID]
	end := len(log)
	if page.BeforeID > 0 {
		end = sort.Search(len(log), func(i int) bool { return log[i].ID >= page.BeforeID })
	}
	start := end - page.Limit
	hasMore := start > 0
	if start < 0 {
		start = 0
	}

	out := make([]*domain.Message, 0, end-start)
	for _, msg := range log[start:end] {
		out = append(out, cloneMessage(msg))
	}
	return out, hasMore, nil
}

// Ping reports the store as always reachable.
func (s *Store) Ping(context.Context) error {
	return nil
}

// WithConversationLock runs fn with the conversation exclusively held. Writes made through tx are
// staged and applied only when fn returns nil.
func (s *Store) WithConversationLock(ctx context.Context, conversationID int64, fn domain.LockedFunc) error {
	started := time.Now()
	unlock, err := s.locks.lock(ctx, conversationID, s.lockTimeout)
	if err != nil {
		metrics.RecordLockWait(driverName, "busy", time.Since(started).Seconds())
		s.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("conversation lock not acquired")
		return domain.NewBusy(ctx, platformerrors.LayerRepository, conversationID, err)
	}
	defer unlock()
	metrics.RecordLockWait(driverName, "acquired", time.Since(started).Seconds())

	conv, err := s.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}

	tx := &stagedTx{store: s, conversationID: conversationID, flips: make(map[int64]struct{})}
	if err := fn(ctx, conv, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *stagedTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range tx.inserts {
		s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], cloneMessage(msg))
	}
	if len(tx.flips) > 0 {
		for _, msg := range s.messages[tx.conversationID] {
			if _, ok := tx.flips[msg.ID]; ok {
				msg.Seen = true
			}
		}
	}
	if tx.saved != nil {
		s.conversations[tx.saved.ID] = cloneConversation(tx.saved)
	}
}

// stagedTx buffers writes until the locked function succeeds.
type stagedTx struct {
	store          *Store
	conversationID int64
	inserts        []*domain.Message
	flips          map[int64]struct{}
	saved          *domain.Conversation
}

func (t *stagedTx) FindMessageByClientID(_ context.Context, conversationID int64, sender domain.Identity, clientMessageID string) (*domain.Message, error) {
	for _, msg := range t.inserts {
		if msg.ConversationID == conversationID && sameClientKey(msg, sender, clientMessageID) {
			return cloneMessage(msg), nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, msg := range t.store.messages[conversationID] {
		if sameClientKey(msg, sender, clientMessageID) {
			return cloneMessage(msg), nil
		}
	}
	return nil, nil
}

func sameClientKey(msg *domain.Message, sender domain.Identity, clientMessageID string) bool {
	return msg.ClientMessageID != nil && *msg.ClientMessageID == clientMessageID &&
		msg.SenderType == sender.Type && msg.SenderID == sender.ID
}

func (t *stagedTx) InsertMessage(_ context.Context, msg *domain.Message) error {
	msg.ID = t.store.nextMessageID.Add(1)
	t.inserts = append(t.inserts, cloneMessage(msg))
	return nil
}

func (t *stagedTx) MarkSeen(_ context.Context, conversationID int64, sender domain.SenderType) (int64, error) {
	var flipped int64
	for _, msg := range t.inserts {
		if msg.ConversationID == conversationID && msg.SenderType == sender && !msg.Seen {
			msg.Seen = true
			flipped++
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, msg := range t.store.messages[conversationID] {
		if msg.SenderType != sender || msg.Seen {
			continue
		}
		if _, ok := t.flips[msg.ID]; ok {
			continue
		}
		t.flips[msg.ID] = struct{}{}
		flipped++
	}
	return flipped, nil
}

func (t *stagedTx) CountUnseen(_ context.Context, conversationID int64, sender domain.SenderType) (int64, error) {
	var count int64
	for _, msg := range t.inserts {
		if msg.ConversationID == conversationID && msg.SenderType == sender && !msg.Seen {
			count++
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, msg := range t.store.messages[conversationID] {
		if msg.SenderType != sender || msg.Seen {
			continue
		}
		if _, ok := t.flips[msg.ID]; ok {
			continue
		}
		count++
	}
	return count, nil
}

func (t *stagedTx) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	t.store.mu.RLock()
	_, ok := t.store.conversations[conv.ID]
	t.store.mu.RUnlock()
	if !ok {
		return notFound(ctx)
	}
	t.saved = cloneConversation(conv)
	return nil
}

// SetCounters overwrites stored counters without touching the message log. It exists to simulate
// drift for the reconciler.
func (s *Store) SetCounters(id int64, jobSeeker, employer int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok {
		conv.UnreadCountJobSeeker = jobSeeker
		conv.UnreadCountEmployer = employer
	}
}

func unseenCounts(log []*domain.Message) (jobSeeker, employer int64) {
	for _, msg := range log {
		if msg.Seen {
			continue
		}
		switch msg.SenderType {
		case domain.SenderTypeEmployer:
			jobSeeker++
		case domain.SenderTypeUser:
			employer++
		}
	}
	return jobSeeker, employer
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	if c.LastMessage != nil {
		v := *c.LastMessage
		out.LastMessage = &v
	}
	if c.LastMessageSenderID != nil {
		v := *c.LastMessageSenderID
		out.LastMessageSenderID = &v
	}
	if c.LastMessageSenderType != nil {
		v := *c.LastMessageSenderType
		out.LastMessageSenderType = &v
	}
	if c.LastMessageAt != nil {
		v := *c.LastMessageAt
		out.LastMessageAt = &v
	}
	return &out
}

func cloneMessage(m *domain.Message) *domain.Message {
	out := *m
	if m.ClientMessageID != nil {
		v := *m.ClientMessageID
		out.ClientMessageID = &v
	}
	return &out
}
