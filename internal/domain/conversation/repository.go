package conversation

import "context"

// Repository persists conversations. Reads never take the conversation lock.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Conversation, error)
	FindByJobAndApplication(ctx context.Context, jobID, applicationID int64) (*Conversation, error)
	FindByApplicationID(ctx context.Context, applicationID int64) (*Conversation, error)
	// CreateIfAbsent inserts conv unless (job, application) already exists, then returns the stored row.
	CreateIfAbsent(ctx context.Context, conv *Conversation) (*Conversation, bool, error)
	ListByParticipant(ctx context.Context, participant Identity) ([]*Conversation, error)
	CountUnread(ctx context.Context, participant Identity) (int64, error)
	// ListDrifted returns ids of conversations whose counters disagree with the message log.
	ListDrifted(ctx context.Context, limit int) ([]int64, error)
}

// MessageRepository reads the append-only message log.
type MessageRepository interface {
	List(ctx context.Context, conversationID int64, page Page) ([]*Message, bool, error)
}

// LockedTx is the write surface available while the conversation row is exclusively held.
// Everything written through it commits or rolls back together.
type LockedTx interface {
	// FindMessageByClientID looks up an idempotency key. Keys are scoped to the sender.
	FindMessageByClientID(ctx context.Context, conversationID int64, sender Identity, clientMessageID string) (*Message, error)
	InsertMessage(ctx context.Context, msg *Message) error
	MarkSeen(ctx context.Context, conversationID int64, sender SenderType) (int64, error)
	CountUnseen(ctx context.Context, conversationID int64, sender SenderType) (int64, error)
	SaveConversation(ctx context.Context, conv *Conversation) error
}

// LockedFunc runs with conv locked. Returning an error rolls back every write made through tx.
type LockedFunc func(ctx context.Context, conv *Conversation, tx LockedTx) error

// Locker serializes mutations of one conversation.
// It returns a NotFound error when the conversation is absent and a Timeout error built with
// NewBusy when the lock cannot be acquired in time.
type Locker interface {
	WithConversationLock(ctx context.Context, conversationID int64, fn LockedFunc) error
}

// Job is the slice of a job posting this service needs.
type Job struct {
	ID    int64
	Title string
}

// Application is the slice of a job application this service needs.
type Application struct {
	ID             int64
	JobID          int64
	ApplicantID    int64
	ApplicantEmail string
	ApplicantName  string
}

// Employer is the slice of an employer account this service needs.
type Employer struct {
	ID          int64
	Email       string
	CompanyName string
}

// Directory reads records owned by the job-board core.
type Directory interface {
	FindJob(ctx context.Context, id int64) (*Job, error)
	FindApplication(ctx context.Context, id int64) (*Application, error)
	FindEmployer(ctx context.Context, id int64) (*Employer, error)
}

// IdentityResolver maps an authenticated (type, email) pair to a participant identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, senderType SenderType, email string) (Identity, error)
}
