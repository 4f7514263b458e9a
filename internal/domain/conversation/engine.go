package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"workify/services/conversation-api/internal/domain/realtime"
)

// Engine runs the locked send and seen protocols and reads message pages.
type Engine interface {
	Send(ctx context.Context, params SendParams) (*SendResult, error)
	MarkSeen(ctx context.Context, conversationID int64, caller Identity) (*SeenResult, error)
	GetMessages(ctx context.Context, conversationID int64, caller Identity, page Page) (*MessagePage, error)
}

// EngineOptions bounds message content and page sizes.
type EngineOptions struct {
	MaxContentLength int
	PageSize         int
	PageMax          int
	Now              func() time.Time
}

func (o EngineOptions) withDefaults() EngineOptions {
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = 5000
	}
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	if o.PageMax < o.PageSize {
		o.PageMax = o.PageSize
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

type engine struct {
	locker    Locker
	repo      Repository
	messages  MessageRepository
	publisher realtime.Publisher
	order     *publishOrder
	validate  *validator.Validate
	opts      EngineOptions
	log       zerolog.Logger
}

// NewEngine creates the messaging engine.
func NewEngine(locker Locker, repo Repository, messages MessageRepository, publisher realtime.Publisher, opts EngineOptions, log zerolog.Logger) Engine {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &engine{
		locker:    locker,
		repo:      repo,
		messages:  messages,
		publisher: publisher,
		order:     newPublishOrder(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts.withDefaults(),
		log:       log.With().Str("component", "messaging-engine").Logger(),
	}
}

func (e *engine) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	ctx, span := tracer().Start(ctx, "conversation.send", trace.WithAttributes(
		attribute.Int64("conversation.id", params.ConversationID),
		attribute.String("sender.type", string(params.Caller.Type)),
	))
	defer span.End()

	if !params.Caller.Type.Valid() {
		err := invalidPrincipal(ctx, string(params.Caller.Type))
		recordSpanError(span, err)
		return nil, err
	}

	params.Content = strings.TrimSpace(params.Content)
	params.ClientMessageID = strings.TrimSpace(params.ClientMessageID)
	if err := e.validateSend(ctx, params); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var (
		result *SendResult
		slot   *publishSlot
	)
	err := e.locker.WithConversationLock(ctx, params.ConversationID, func(ctx context.Context, conv *Conversation, tx LockedTx) error {
		if !conv.IsParticipant(params.Caller) {
			return notParticipant(ctx, conv.ID)
		}
		if params.Caller.Type == SenderTypeUser && !conv.HasEmployerMessage {
			return applicantMustWait(ctx, conv.ID)
		}

		if params.ClientMessageID != "" {
			existing, err := tx.FindMessageByClientID(ctx, conv.ID, params.Caller, params.ClientMessageID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &SendResult{Message: existing, Conversation: conv, Duplicate: true}
				return nil
			}
		}

		msg := &Message{
			ConversationID: conv.ID,
			SenderID:       params.Caller.ID,
			SenderType:     params.Caller.Type,
			Content:        params.Content,
			CreatedAt:      e.opts.Now(),
		}
		if params.ClientMessageID != "" {
			key := params.ClientMessageID
			msg.ClientMessageID = &key
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}

		conv.RecordMessage(msg)
		if err := tx.SaveConversation(ctx, conv); err != nil {
			return err
		}

		result = &SendResult{Message: msg, Conversation: conv}
		slot = e.order.reserve(conv.ID)
		return nil
	})
	if err != nil {
		e.cancelSlot(params.ConversationID, slot)
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("message.id", result.Message.ID), attribute.Bool("message.duplicate", result.Duplicate))
	if result.Duplicate {
		e.log.Debug().
			Int64("conversation_id", params.ConversationID).
			Int64("message_id", result.Message.ID).
			Msg("duplicate send replayed")
		return result, nil
	}

	e.publishInOrder(ctx, slot, result.Conversation, realtime.Event{
		Type:           realtime.EventMessageCreated,
		Channel:        realtime.ChannelMessages,
		ConversationID: result.Conversation.ID,
		Version:        result.Conversation.Version,
		Message:        result.Message.Payload(),
		Conversation:   result.Conversation.Counters(),
	})
	return result, nil
}

func (e *engine) validateSend(ctx context.Context, params SendParams) error {
	if err := e.validate.Struct(params); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "ClientMessageID" {
			return invalidContent(ctx, "client_message_id must be at most 64 printable ASCII characters")
		}
		return invalidContent(ctx, "message content must not be empty")
	}
	if err := e.validate.Var(params.Content, "max="+strconv.Itoa(e.opts.MaxContentLength)); err != nil {
		return invalidContent(ctx, "message content must be at most "+strconv.Itoa(e.opts.MaxContentLength)+" characters")
	}
	return nil
}

func (e *engine) MarkSeen(ctx context.Context, conversationID int64, caller Identity) (*SeenResult, error) {
	ctx, span := tracer().Start(ctx, "conversation.mark_seen", trace.WithAttributes(
		attribute.Int64("conversation.id", conversationID),
		attribute.String("sender.type", string(caller.Type)),
	))
	defer span.End()

	if !caller.Type.Valid() {
		err := invalidPrincipal(ctx, string(caller.Type))
		recordSpanError(span, err)
		return nil, err
	}

	var (
		result *SeenResult
		slot   *publishSlot
	)
	err := e.locker.WithConversationLock(ctx, conversationID, func(ctx context.Context, conv *Conversation, tx LockedTx) error {
		if !conv.IsParticipant(caller) {
			return notParticipant(ctx, conv.ID)
		}

		flipped, err := tx.MarkSeen(ctx, conv.ID, caller.Type.Other())
		if err != nil {
			return err
		}
		if flipped > 0 {
			conv.ApplySeen(caller.Type, flipped, e.opts.Now())
			if err := tx.SaveConversation(ctx, conv); err != nil {
				return err
			}
		}

		result = &SeenResult{Conversation: conv, Flipped: flipped}
		slot = e.order.reserve(conv.ID)
		return nil
	})
	if err != nil {
		e.cancelSlot(conversationID, slot)
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("messages.flipped", result.Flipped))
	e.publishInOrder(ctx, slot, result.Conversation, realtime.Event{
		Type:           realtime.EventConversationSeen,
		Channel:        realtime.ChannelMessages,
		ConversationID: result.Conversation.ID,
		Version:        result.Conversation.Version,
		Conversation:   result.Conversation.Counters(),
	})
	return result, nil
}

func (e *engine) GetMessages(ctx context.Context, conversationID int64, caller Identity, page Page) (*MessagePage, error) {
	if !caller.Type.Valid() {
		return nil, invalidPrincipal(ctx, string(caller.Type))
	}

	conv, err := e.repo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(caller) {
		return nil, notParticipant(ctx, conversationID)
	}

	page = e.normalizePage(page)
	messages, hasMore, err := e.messages.List(ctx, conversationID, page)
	if err != nil {
		return nil, err
	}

	out := &MessagePage{Messages: messages, HasMore: hasMore}
	if hasMore && len(messages) > 0 {
		out.NextBeforeID = messages[0].ID
	}
	return out, nil
}

func (e *engine) normalizePage(page Page) Page {
	if page.Limit <= 0 {
		page.Limit = e.opts.PageSize
	}
	if page.Limit > e.opts.PageMax {
		page.Limit = e.opts.PageMax
	}
	if page.BeforeID < 0 {
		page.BeforeID = 0
	}
	return page
}

// publishInOrder hands the fan-out to the conversation's publish queue. The slot was reserved
// under the lock, so events leave in commit order even when an earlier fan-out is slow.
func (e *engine) publishInOrder(ctx context.Context, slot *publishSlot, conv *Conversation, event realtime.Event) {
	ctx = context.WithoutCancel(ctx)
	e.order.resolve(conv.ID, slot, func() {
		e.fanOut(ctx, conv, event)
	})
}

// cancelSlot releases a slot whose transaction did not commit.
func (e *engine) cancelSlot(conversationID int64, slot *publishSlot) {
	if slot != nil {
		e.order.resolve(conversationID, slot, nil)
	}
}

// fanOut publishes event to both participants once the transaction has committed.
// Totals are best effort: a failed count publishes the event without them.
func (e *engine) fanOut(ctx context.Context, conv *Conversation, event realtime.Event) {
	event.SentAt = e.opts.Now()

	var totals realtime.UnreadTotals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := e.repo.CountUnread(gctx, conv.JobSeeker)
		totals.JobSeeker = n
		return err
	})
	g.Go(func() error {
		n, err := e.repo.CountUnread(gctx, conv.Employer)
		totals.Employer = n
		return err
	})
	if err := g.Wait(); err != nil {
		e.log.Warn().Err(err).Int64("conversation_id", conv.ID).Msg("failed to compute unread totals for fan-out")
	} else {
		event.UnreadTotals = &totals
	}

	e.publisher.Publish(ctx, conv.JobSeeker.Destination(), event)
	e.publisher.Publish(ctx, conv.Employer.Destination(), event)
}
