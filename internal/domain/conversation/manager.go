package conversation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"workify/services/conversation-api/internal/domain/retry"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

const tracerName = "workify/conversation-api/conversation"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Manager creates and reads conversations and answers membership questions.
type Manager interface {
	GetOrCreate(ctx context.Context, jobID, applicationID, employerID int64) (*Conversation, bool, error)
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	GetForParticipant(ctx context.Context, id int64, caller Identity) (*Conversation, error)
	GetByApplicationID(ctx context.Context, applicationID int64, caller Identity) (*Conversation, error)
	ListForParticipant(ctx context.Context, caller Identity) ([]*Conversation, error)
	IsParticipant(ctx context.Context, conversationID int64, caller Identity) (bool, error)
	CountUnreadConversations(ctx context.Context, caller Identity) (int64, error)
	ResolveCaller(ctx context.Context, principal Principal) (Identity, error)
}

type manager struct {
	repo      Repository
	directory Directory
	resolver  IdentityResolver
	policy    retry.Policy
	log       zerolog.Logger
}

// NewManager creates a conversation manager. policy governs retries of transient storage
// failures during GetOrCreate.
func NewManager(repo Repository, directory Directory, resolver IdentityResolver, policy retry.Policy, log zerolog.Logger) Manager {
	return &manager{
		repo:      repo,
		directory: directory,
		resolver:  resolver,
		policy:    policy,
		log:       log.With().Str("component", "conversation-manager").Logger(),
	}
}

func (m *manager) GetOrCreate(ctx context.Context, jobID, applicationID, employerID int64) (*Conversation, bool, error) {
	ctx, span := tracer().Start(ctx, "conversation.get_or_create", trace.WithAttributes(
		attribute.Int64("job.id", jobID),
		attribute.Int64("application.id", applicationID),
	))
	defer span.End()

	type outcome struct {
		conv    *Conversation
		created bool
	}

	result, err := retry.ExecuteWithResult(ctx, m.policy, platformerrors.IsRetryable, func(ctx context.Context, attempt int) (outcome, error) {
		if attempt > 0 {
			m.log.Warn().Int("attempt", attempt).Int64("application_id", applicationID).Msg("retrying conversation creation")
		}
		conv, created, err := m.getOrCreateOnce(ctx, jobID, applicationID, employerID)
		return outcome{conv: conv, created: created}, err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, false, err
	}

	span.SetAttributes(attribute.Int64("conversation.id", result.conv.ID), attribute.Bool("conversation.created", result.created))
	return result.conv, result.created, nil
}

func (m *manager) getOrCreateOnce(ctx context.Context, jobID, applicationID, employerID int64) (*Conversation, bool, error) {
	existing, err := m.repo.FindByJobAndApplication(ctx, jobID, applicationID)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	job, err := m.directory.FindJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	application, err := m.directory.FindApplication(ctx, applicationID)
	if err != nil {
		return nil, false, err
	}
	employer, err := m.directory.FindEmployer(ctx, employerID)
	if err != nil {
		return nil, false, err
	}

	if application.JobID != job.ID {
		return nil, false, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"application does not belong to the given job", ErrApplicationJobMismatch, CodeApplicationJob,
			map[string]any{"job_id": jobID, "application_id": applicationID, "application_job_id": application.JobID})
	}

	conv := &Conversation{
		JobID:         job.ID,
		ApplicationID: application.ID,
		JobTitle:      job.Title,
		JobSeeker: Identity{
			Type:  SenderTypeUser,
			ID:    application.ApplicantID,
			Email: application.ApplicantEmail,
			Name:  application.ApplicantName,
		},
		Employer: Identity{
			Type:  SenderTypeEmployer,
			ID:    employer.ID,
			Email: employer.Email,
			Name:  employer.CompanyName,
		},
	}

	stored, created, err := m.repo.CreateIfAbsent(ctx, conv)
	if err != nil {
		return nil, false, err
	}

	if created {
		m.log.Info().
			Int64("conversation_id", stored.ID).
			Int64("job_id", jobID).
			Int64("application_id", applicationID).
			Msg("conversation created")
	}
	return stored, created, nil
}

func (m *manager) GetByID(ctx context.Context, id int64) (*Conversation, error) {
	return m.repo.FindByID(ctx, id)
}

func (m *manager) GetForParticipant(ctx context.Context, id int64, caller Identity) (*Conversation, error) {
	conv, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(caller) {
		return nil, notParticipant(ctx, id)
	}
	return conv, nil
}

func (m *manager) GetByApplicationID(ctx context.Context, applicationID int64, caller Identity) (*Conversation, error) {
	conv, err := m.repo.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(caller) {
		return nil, notParticipant(ctx, conv.ID)
	}
	return conv, nil
}

func (m *manager) ListForParticipant(ctx context.Context, caller Identity) ([]*Conversation, error) {
	if !caller.Type.Valid() {
		return nil, invalidPrincipal(ctx, string(caller.Type))
	}
	return m.repo.ListByParticipant(ctx, caller)
}

func (m *manager) IsParticipant(ctx context.Context, conversationID int64, caller Identity) (bool, error) {
	conv, err := m.repo.FindByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return conv.IsParticipant(caller), nil
}

func (m *manager) CountUnreadConversations(ctx context.Context, caller Identity) (int64, error) {
	if !caller.Type.Valid() {
		return 0, invalidPrincipal(ctx, string(caller.Type))
	}
	return m.repo.CountUnread(ctx, caller)
}

func (m *manager) ResolveCaller(ctx context.Context, principal Principal) (Identity, error) {
	senderType, ok := ParseSenderType(principal.Type)
	if !ok {
		return Identity{}, invalidPrincipal(ctx, principal.Type)
	}
	email := strings.ToLower(strings.TrimSpace(principal.Email))
	if email == "" {
		return Identity{}, invalidPrincipal(ctx, principal.Type)
	}
	return m.resolver.ResolveIdentity(ctx, senderType, email)
}
