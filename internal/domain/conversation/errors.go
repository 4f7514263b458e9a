package conversation

import (
	"context"
	"errors"

	"workify/services/conversation-api/internal/utils/platformerrors"
)

// Sentinels wrapped by every PlatformError this package and its stores return.
var (
	ErrConversationNotFound          = errors.New("conversation not found")
	ErrJobNotFound                   = errors.New("job not found")
	ErrApplicationNotFound           = errors.New("application not found")
	ErrEmployerNotFound              = errors.New("employer not found")
	ErrIdentityNotFound              = errors.New("identity not found")
	ErrApplicationJobMismatch        = errors.New("application does not belong to job")
	ErrNotConversationParticipant    = errors.New("caller is not a participant of the conversation")
	ErrApplicantMustWaitForRecruiter = errors.New("applicant must wait for the recruiter to start the conversation")
	ErrInvalidPrincipal              = errors.New("caller is neither a job seeker nor an employer")
	ErrInvalidContent                = errors.New("invalid message content")
	ErrConversationBusy              = errors.New("conversation is locked by another operation")
)

// Error codes surfaced in HTTP and websocket error frames.
const (
	CodeNotParticipant    = "not-conversation-participant"
	CodeApplicantMustWait = "applicant-must-wait-for-recruiter"
	CodeInvalidPrincipal  = "invalid-principal"
	CodeInvalidContent    = "invalid-message-content"
	CodeApplicationJob    = "application-job-mismatch"
	CodeConversationBusy  = "conversation-busy"
)

var notFoundCodes = map[error]string{
	ErrConversationNotFound: "conversation-not-found",
	ErrJobNotFound:          "job-not-found",
	ErrApplicationNotFound:  "application-not-found",
	ErrEmployerNotFound:     "employer-not-found",
	ErrIdentityNotFound:     "identity-not-found",
}

func notParticipant(ctx context.Context, conversationID int64) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
		"you are not a participant of this conversation", ErrNotConversationParticipant, CodeNotParticipant,
		map[string]any{"conversation_id": conversationID})
}

func applicantMustWait(ctx context.Context, conversationID int64) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
		"the employer has to send the first message before you can reply", ErrApplicantMustWaitForRecruiter, CodeApplicantMustWait,
		map[string]any{"conversation_id": conversationID})
}

func invalidPrincipal(ctx context.Context, raw string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		"caller must be a job seeker or an employer", ErrInvalidPrincipal, CodeInvalidPrincipal,
		map[string]any{"principal_type": raw})
}

func invalidContent(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		message, ErrInvalidContent, CodeInvalidContent)
}

// NewNotFound builds the NotFound error stores return for a missing record.
func NewNotFound(ctx context.Context, layer platformerrors.Layer, sentinel error, cause error) error {
	return platformerrors.NewError(ctx, layer, platformerrors.ErrorTypeNotFound, sentinel.Error(),
		errors.Join(sentinel, cause), notFoundCodes[sentinel])
}

// NewBusy builds the retryable error returned when the conversation lock times out.
func NewBusy(ctx context.Context, layer platformerrors.Layer, conversationID int64, cause error) error {
	return platformerrors.NewErrorWithContext(ctx, layer, platformerrors.ErrorTypeTimeout,
		"conversation is busy, retry shortly", errors.Join(ErrConversationBusy, cause), CodeConversationBusy,
		map[string]any{"conversation_id": conversationID})
}

// IsNotFound reports whether err is any NotFound platform error.
func IsNotFound(err error) bool {
	return platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound)
}
