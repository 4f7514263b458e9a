package conversation_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/domain/retry"
	"workify/services/conversation-api/internal/infrastructure/repository/memory"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

type published struct {
	destination realtime.Destination
	event       realtime.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, destination realtime.Destination, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{destination: destination, event: event})
}

func (p *recordingPublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]published, len(p.events))
	copy(out, p.events)
	return out
}

type fixture struct {
	store     *memory.Store
	directory *memory.Directory
	publisher *recordingPublisher
	manager   conversation.Manager
	engine    conversation.Engine

	jobSeeker conversation.Identity
	employer  conversation.Identity
	stranger  conversation.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore(5*time.Second, zerolog.Nop())
	directory := memory.NewDirectory()
	directory.AddJob(conversation.Job{ID: 7, Title: "Backend Engineer"})
	directory.AddJob(conversation.Job{ID: 8, Title: "Designer"})
	directory.AddEmployer(conversation.Employer{ID: 3, Email: "hr@acme.io", CompanyName: "Acme"})
	directory.AddUser(5, "ana@workify.vn", "Ana")
	directory.AddUser(6, "bao@workify.vn", "Bao")
	directory.AddApplication(conversation.Application{ID: 42, JobID: 7, ApplicantID: 5, ApplicantEmail: "ana@workify.vn", ApplicantName: "Ana"})

	publisher := &recordingPublisher{}
	return &fixture{
		store:     store,
		directory: directory,
		publisher: publisher,
		manager:   conversation.NewManager(store, directory, directory, retry.NoRetryPolicy(), zerolog.Nop()),
		engine: conversation.NewEngine(store, store, store, publisher, conversation.EngineOptions{
			MaxContentLength: 20,
			PageSize:         3,
			PageMax:          5,
		}, zerolog.Nop()),
		jobSeeker: conversation.Identity{Type: conversation.SenderTypeUser, ID: 5, Email: "ana@workify.vn"},
		employer:  conversation.Identity{Type: conversation.SenderTypeEmployer, ID: 3, Email: "hr@acme.io"},
		stranger:  conversation.Identity{Type: conversation.SenderTypeUser, ID: 6, Email: "bao@workify.vn"},
	}
}

func (f *fixture) conversation(t *testing.T) *conversation.Conversation {
	t.Helper()
	conv, _, err := f.manager.GetOrCreate(context.Background(), 7, 42, 3)
	require.NoError(t, err)
	return conv
}

func (f *fixture) send(t *testing.T, convID int64, caller conversation.Identity, content string) *conversation.SendResult {
	t.Helper()
	res, err := f.engine.Send(context.Background(), conversation.SendParams{ConversationID: convID, Caller: caller, Content: content})
	require.NoError(t, err)
	return res
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	hello := f.send(t, conv.ID, f.employer, "Hello")
	assert.True(t, hello.Conversation.HasEmployerMessage)
	assert.Equal(t, 1, hello.Conversation.UnreadCountJobSeeker)
	assert.Equal(t, 0, hello.Conversation.UnreadCountEmployer)

	hi := f.send(t, conv.ID, f.jobSeeker, "Hi")
	assert.Equal(t, 1, hi.Conversation.UnreadCountEmployer)
	assert.Equal(t, 1, hi.Conversation.UnreadCountJobSeeker)
	assert.Equal(t, "Hi", *hi.Conversation.LastMessage)
	assert.Equal(t, conversation.SenderTypeUser, *hi.Conversation.LastMessageSenderType)

	seen, err := f.engine.MarkSeen(ctx, conv.ID, f.jobSeeker)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seen.Flipped)
	assert.Equal(t, 0, seen.Conversation.UnreadCountJobSeeker)
	assert.Equal(t, 1, seen.Conversation.UnreadCountEmployer)

	stored, err := f.manager.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UnreadCountJobSeeker)
	assert.Equal(t, 1, stored.UnreadCountEmployer)
	assert.True(t, stored.HasEmployerMessage)
}

func TestApplicantMustWaitForRecruiter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	_, err := f.engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: f.jobSeeker, Content: "Hi there"})
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrApplicantMustWaitForRecruiter)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
	assert.Equal(t, conversation.CodeApplicantMustWait, platformerrors.GetPlatformError(err).UUID)

	stored, err := f.manager.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version, "a rejected send must not mutate the conversation")

	f.send(t, conv.ID, f.employer, "Welcome")
	f.send(t, conv.ID, f.jobSeeker, "Hi there")

	// The gate stays open once the employer has written, even after everything is read.
	_, err = f.engine.MarkSeen(ctx, conv.ID, f.employer)
	require.NoError(t, err)
	_, err = f.engine.MarkSeen(ctx, conv.ID, f.jobSeeker)
	require.NoError(t, err)
	f.send(t, conv.ID, f.jobSeeker, "Any update?")
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	f.send(t, conv.ID, f.employer, "One")
	f.send(t, conv.ID, f.employer, "Two")

	first, err := f.engine.MarkSeen(ctx, conv.ID, f.jobSeeker)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Flipped)

	second, err := f.engine.MarkSeen(ctx, conv.ID, f.jobSeeker)
	require.NoError(t, err)
	assert.Zero(t, second.Flipped)
	assert.Equal(t, first.Conversation.UnreadCountJobSeeker, second.Conversation.UnreadCountJobSeeker)
	assert.Equal(t, first.Conversation.UnreadCountEmployer, second.Conversation.UnreadCountEmployer)
	assert.Equal(t, first.Conversation.Version, second.Conversation.Version)
}

func TestMarkSeenOnlyFlipsOtherParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	f.send(t, conv.ID, f.employer, "Hello")
	f.send(t, conv.ID, f.jobSeeker, "Hi")

	res, err := f.engine.MarkSeen(ctx, conv.ID, f.employer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Flipped)
	assert.Equal(t, 0, res.Conversation.UnreadCountEmployer)
	assert.Equal(t, 1, res.Conversation.UnreadCountJobSeeker)

	page, err := f.engine.GetMessages(ctx, conv.ID, f.employer, conversation.Page{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.False(t, page.Messages[0].Seen, "employer's own message stays unseen")
	assert.True(t, page.Messages[1].Seen)
}

func TestNonParticipantAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	f.send(t, conv.ID, f.employer, "Hello")

	otherEmployer := conversation.Identity{Type: conversation.SenderTypeEmployer, ID: 99, Email: "other@corp.io"}
	for _, caller := range []conversation.Identity{f.stranger, otherEmployer} {
		_, err := f.engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: caller, Content: "let me in"})
		assert.ErrorIs(t, err, conversation.ErrNotConversationParticipant)

		_, err = f.engine.GetMessages(ctx, conv.ID, caller, conversation.Page{})
		assert.ErrorIs(t, err, conversation.ErrNotConversationParticipant)

		_, err = f.engine.MarkSeen(ctx, conv.ID, caller)
		assert.ErrorIs(t, err, conversation.ErrNotConversationParticipant)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
	}

	stored, err := f.manager.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnreadCountJobSeeker)
}

func TestConcurrentSendsKeepCountersConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	f.send(t, conv.ID, f.employer, "Opening")

	const perSide = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2*perSide)
	for i := 0; i < perSide; i++ {
		for _, caller := range []conversation.Identity{f.employer, f.jobSeeker} {
			wg.Add(1)
			go func(caller conversation.Identity, i int) {
				defer wg.Done()
				_, err := f.engine.Send(ctx, conversation.SendParams{
					ConversationID: conv.ID,
					Caller:         caller,
					Content:        fmt.Sprintf("%s %d", caller.Type, i),
				})
				errs <- err
			}(caller, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.manager.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, perSide+1, stored.UnreadCountJobSeeker)
	assert.Equal(t, perSide, stored.UnreadCountEmployer)
	assert.Equal(t, int64(2*perSide+1), stored.Version)

	var all []*conversation.Message
	page := conversation.Page{Limit: 5}
	for {
		res, err := f.engine.GetMessages(ctx, conv.ID, f.employer, page)
		require.NoError(t, err)
		all = append(res.Messages, all...)
		if !res.HasMore {
			break
		}
		page.BeforeID = res.NextBeforeID
	}
	require.Len(t, all, 2*perSide+1)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID, "message ids follow commit order")
	}

	drifted, err := f.store.ListDrifted(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, drifted)
}

func TestConcurrentGetOrCreateYieldsOneConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[int64]int{}
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, isNew, err := f.manager.GetOrCreate(ctx, 7, 42, 3)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[conv.ID]++
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}

func TestGetOrCreateValidatesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, created, err := f.manager.GetOrCreate(ctx, 7, 42, 3)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, conv.HasEmployerMessage)
	assert.Equal(t, f.jobSeeker.ID, conv.JobSeeker.ID)
	assert.Equal(t, "Backend Engineer", conv.JobTitle)

	_, _, err = f.manager.GetOrCreate(ctx, 8, 42, 3)
	assert.ErrorIs(t, err, conversation.ErrApplicationJobMismatch)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))

	_, _, err = f.manager.GetOrCreate(ctx, 999, 43, 3)
	assert.ErrorIs(t, err, conversation.ErrJobNotFound)

	_, _, err = f.manager.GetOrCreate(ctx, 7, 43, 3)
	assert.ErrorIs(t, err, conversation.ErrApplicationNotFound)

	_, _, err = f.manager.GetOrCreate(ctx, 8, 44, 77)
	assert.True(t, conversation.IsNotFound(err))
}

func TestSendWithClientMessageIDIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	params := conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: "Hello", ClientMessageID: "c-1"}
	first, err := f.engine.Send(ctx, params)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	eventsAfterFirst := len(f.publisher.snapshot())

	replay, err := f.engine.Send(ctx, params)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Message.ID, replay.Message.ID)
	assert.Equal(t, 1, replay.Conversation.UnreadCountJobSeeker)
	assert.Len(t, f.publisher.snapshot(), eventsAfterFirst, "a replay emits nothing")
}

// stallingRepository blocks the first CountUnread until released.
type stallingRepository struct {
	conversation.Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *stallingRepository) CountUnread(ctx context.Context, participant conversation.Identity) (int64, error) {
	stall := false
	r.once.Do(func() { stall = true })
	if stall {
		close(r.entered)
		<-r.release
	}
	return r.Repository.CountUnread(ctx, participant)
}

func TestEventsLeaveInCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	repo := &stallingRepository{Repository: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	engine := conversation.NewEngine(f.store, repo, f.store, f.publisher, conversation.EngineOptions{}, zerolog.Nop())

	firstDone := make(chan error, 1)
	go func() {
		_, err := engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: "first"})
		firstDone <- err
	}()
	<-repo.entered

	second, err := engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: "second"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Conversation.Version)
	assert.Empty(t, f.publisher.snapshot(), "the later commit waits behind the stalled fan-out")

	close(repo.release)
	require.NoError(t, <-firstDone)

	events := f.publisher.snapshot()
	require.Len(t, events, 4)
	got := make([]string, 0, len(events))
	for _, p := range events {
		got = append(got, fmt.Sprintf("%d:%s", p.event.Version, p.event.Message.Content))
	}
	assert.Equal(t, []string{"1:first", "1:first", "2:second", "2:second"}, got)
}

func TestClientMessageIDIsScopedToSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	hello, err := f.engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: "Hello", ClientMessageID: "k1"})
	require.NoError(t, err)

	hi, err := f.engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: f.jobSeeker, Content: "Hi", ClientMessageID: "k1"})
	require.NoError(t, err)
	assert.False(t, hi.Duplicate)
	assert.NotEqual(t, hello.Message.ID, hi.Message.ID)
	assert.Equal(t, conversation.SenderTypeUser, hi.Message.SenderType)
	assert.Equal(t, "Hi", hi.Message.Content)
	assert.Equal(t, 1, hi.Conversation.UnreadCountEmployer)

	replay, err := f.engine.Send(ctx, conversation.SendParams{ConversationID: conv.ID, Caller: f.jobSeeker, Content: "Hi", ClientMessageID: "k1"})
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, hi.Message.ID, replay.Message.ID)
}

func TestSendValidatesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	tests := []struct {
		name   string
		params conversation.SendParams
	}{
		{"empty", conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: ""}},
		{"blank", conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: "   \n\t"}},
		{"too long", conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: strings.Repeat("x", 21)}},
		{"bad client id", conversation.SendParams{ConversationID: conv.ID, Caller: f.employer, Content: "ok", ClientMessageID: strings.Repeat("k", 65)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Send(ctx, tt.params)
			assert.ErrorIs(t, err, conversation.ErrInvalidContent)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
		})
	}

	res := f.send(t, conv.ID, f.employer, "  padded  ")
	assert.Equal(t, "padded", res.Message.Content)
}

func TestSendRejectsUnknownCallerType(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)

	_, err := f.engine.Send(context.Background(), conversation.SendParams{
		ConversationID: conv.ID,
		Caller:         conversation.Identity{Type: "ADMIN", ID: 1},
		Content:        "hello",
	})
	assert.ErrorIs(t, err, conversation.ErrInvalidPrincipal)
}

func TestFanOutReachesBothParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	f.send(t, conv.ID, f.employer, "Hello")
	_, err := f.engine.MarkSeen(ctx, conv.ID, f.jobSeeker)
	require.NoError(t, err)

	events := f.publisher.snapshot()
	require.Len(t, events, 4)

	assert.Equal(t, realtime.Destination("USER:ana@workify.vn"), events[0].destination)
	assert.Equal(t, realtime.Destination("EMPLOYER:hr@acme.io"), events[1].destination)

	created := events[0].event
	assert.Equal(t, realtime.EventMessageCreated, created.Type)
	assert.Equal(t, realtime.ChannelMessages, created.Channel)
	require.NotNil(t, created.Message)
	assert.Equal(t, "Hello", created.Message.Content)
	assert.Equal(t, 1, created.Conversation.UnreadCountJobSeeker)
	require.NotNil(t, created.UnreadTotals)
	assert.Equal(t, int64(1), created.UnreadTotals.JobSeeker)
	assert.Equal(t, int64(0), created.UnreadTotals.Employer)

	seen := events[2].event
	assert.Equal(t, realtime.EventConversationSeen, seen.Type)
	assert.Nil(t, seen.Message)
	assert.Equal(t, 0, seen.Conversation.UnreadCountJobSeeker)
	require.NotNil(t, seen.UnreadTotals)
	assert.Equal(t, int64(0), seen.UnreadTotals.JobSeeker)
	assert.Greater(t, seen.Version, created.Version)
}

func TestGetMessagesPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	for i := 0; i < 7; i++ {
		f.send(t, conv.ID, f.employer, fmt.Sprintf("m%d", i))
	}

	defaults, err := f.engine.GetMessages(ctx, conv.ID, f.jobSeeker, conversation.Page{})
	require.NoError(t, err)
	require.Len(t, defaults.Messages, 3)
	assert.Equal(t, "m4", defaults.Messages[0].Content)
	assert.Equal(t, "m6", defaults.Messages[2].Content)
	assert.True(t, defaults.HasMore)
	assert.Equal(t, defaults.Messages[0].ID, defaults.NextBeforeID)

	capped, err := f.engine.GetMessages(ctx, conv.ID, f.jobSeeker, conversation.Page{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, capped.Messages, 5)

	rest, err := f.engine.GetMessages(ctx, conv.ID, f.jobSeeker, conversation.Page{BeforeID: capped.NextBeforeID, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, rest.Messages, 2)
	assert.False(t, rest.HasMore)
	assert.Zero(t, rest.NextBeforeID)
}

func TestSendFailsFastWhenConversationBusy(t *testing.T) {
	store := memory.NewStore(20*time.Millisecond, zerolog.Nop())
	directory := memory.NewDirectory()
	directory.AddJob(conversation.Job{ID: 7})
	directory.AddEmployer(conversation.Employer{ID: 3, Email: "hr@acme.io"})
	directory.AddApplication(conversation.Application{ID: 42, JobID: 7, ApplicantID: 5, ApplicantEmail: "ana@workify.vn"})
	manager := conversation.NewManager(store, directory, directory, retry.NoRetryPolicy(), zerolog.Nop())
	engine := conversation.NewEngine(store, store, store, nil, conversation.EngineOptions{}, zerolog.Nop())

	conv, _, err := manager.GetOrCreate(context.Background(), 7, 42, 3)
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithConversationLock(context.Background(), conv.ID, func(context.Context, *conversation.Conversation, conversation.LockedTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err = engine.Send(context.Background(), conversation.SendParams{
		ConversationID: conv.ID,
		Caller:         conversation.Identity{Type: conversation.SenderTypeEmployer, ID: 3},
		Content:        "Hello",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrConversationBusy)
	assert.True(t, platformerrors.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
}
