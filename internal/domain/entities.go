package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCircuitOpen       = errors.New("circuit open")
	ErrTransport         = errors.New("transport failure")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrInternal          = errors.New("internal error")
)

//go:generate mockery --name=TurnRepository --filename=turn_repository_mock.go
//go:generate mockery --name=IngestionQueueRepository --filename=ingestion_queue_repository_mock.go
//go:generate mockery --name=ReservationRepository --filename=reservation_repository_mock.go
//go:generate mockery --name=BillingRetryRepository --filename=billing_retry_repository_mock.go
//go:generate mockery --name=JobRepository --filename=job_repository_mock.go
//go:generate mockery --name=FeedbackRepository --filename=feedback_repository_mock.go
//go:generate mockery --name=AuthService --filename=auth_service_mock.go
//go:generate mockery --name=BillingLedger --filename=billing_ledger_mock.go
//go:generate mockery --name=FileStore --filename=file_store_mock.go
//go:generate mockery --name=VectorStore --filename=vector_store_mock.go
//go:generate mockery --name=SnapshotStore --filename=snapshot_store_mock.go
//go:generate mockery --name=GraphStore --filename=graph_store_mock.go
//go:generate mockery --name=Extractor --filename=extractor_mock.go
//go:generate mockery --name=LLMProvider --filename=llm_provider_mock.go
//go:generate mockery --name=EventPublisher --filename=event_publisher_mock.go

// Turn is one user/assistant exchange, keyed by a globally unique message id.
// MessageID is immutable; (UserID, MessageID) uniquely identifies an
// accessible turn, so lookups always include both.
type Turn struct {
	MessageID         string
	ProjectID         string
	UserID            string
	UserQuery         string
	AssistantResponse string
	CreatedAt         time.Time
	IsBookmarked      bool
}

type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionInProgress IngestionStatus = "in-progress"
	IngestionComplete   IngestionStatus = "complete"
	IngestionFailed     IngestionStatus = "failed"
)

// IngestionItem is one durable work item for the turn → {file, vector, snapshot}
// fanout. Unique on MessageID; transitions pending → in-progress → {complete, failed}.
type IngestionItem struct {
	ID           int64
	MessageID    string
	ProjectID    string
	UserID       string
	Status       IngestionStatus
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	ErrorMessage *string
}

type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Job is one long-running async operation. Terminal states are sinks; on
// restart any PROCESSING row with no live worker is demoted to QUEUED.
type Job struct {
	JobID       string
	ProjectID   string
	UserID      string
	JobType     string
	Status      JobStatus
	TaskRef     string
	Args        []byte
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      []byte
	Error       *string
}

// Feedback is an append-only rating/comment keyed by message id.
type Feedback struct {
	FeedbackID string
	MessageID  string
	UserID     string
	Rating     int
	Category   *string
	Comment    *string
	CreatedAt  time.Time
}

// FeedbackSummary aggregates the feedback table.
type FeedbackSummary struct {
	Count      int64
	MeanRating float64
	Categories map[string]int64
	Last24h    int64
}

// Identity is the auth collaborator's answer to token verification. Tier is
// advisory (billing estimates); an empty tier falls back to the default.
type Identity struct {
	UserID string
	Role   string
	Tier   string
}

// Session is the auth collaborator's answer to a credential exchange.
type Session struct {
	Token  string
	UserID string
	Role   string
}

type AccessType string

const (
	AccessOwner AccessType = "owner"
	AccessGuest AccessType = "guest"
	AccessNone  AccessType = "none"
)

// ProjectAccess is the per-request access decision. Role alone is never
// sufficient; HasAccess reflects ownership or an explicit grant.
type ProjectAccess struct {
	HasAccess       bool
	AccessType      AccessType
	PermissionLevel string
}

// Repositories (ports)

type TurnRepository interface {
	Insert(ctx Context, t Turn) error
	// GetByID returns the turn only when both ids match; a missing row and an
	// ownership mismatch are indistinguishable (ErrNotFound for both).
	GetByID(ctx Context, messageID, userID string) (Turn, error)
	SetBookmark(ctx Context, messageID, userID string, flag bool) (bool, error)
	ListBookmarks(ctx Context, projectID, userID string, limit int) ([]Turn, error)
	ListRecent(ctx Context, projectID, userID string, limit int) ([]Turn, error)
}

type IngestionQueueRepository interface {
	// Enqueue inserts a pending row; returns false when message_id already exists.
	Enqueue(ctx Context, messageID, projectID, userID string) (bool, error)
	// ClaimPending atomically moves up to limit pending rows to in-progress.
	ClaimPending(ctx Context, limit int) ([]IngestionItem, error)
	MarkComplete(ctx Context, id int64) error
	MarkFailed(ctx Context, id int64, errMsg string) error
	// RequeueStale returns in-progress rows older than cutoff to pending.
	RequeueStale(ctx Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx Context) (map[IngestionStatus]int64, error)
}

type JobRepository interface {
	Create(ctx Context, j Job) error
	SetQueued(ctx Context, jobID, taskRef string, args []byte) error
	// ClaimQueued atomically moves up to limit QUEUED rows to PROCESSING.
	ClaimQueued(ctx Context, limit int) ([]Job, error)
	Complete(ctx Context, jobID string, result []byte) error
	Fail(ctx Context, jobID string, errMsg string) error
	Get(ctx Context, jobID string) (Job, error)
	ListByProject(ctx Context, projectID, userID string, limit int) ([]Job, error)
	// RecoverProcessing demotes PROCESSING rows to QUEUED after a restart.
	RecoverProcessing(ctx Context) (int64, error)
}

type FeedbackRepository interface {
	Insert(ctx Context, f Feedback) error
	ListByMessage(ctx Context, messageID string, limit int) ([]Feedback, error)
	ListByUser(ctx Context, userID string, limit int) ([]Feedback, error)
	Summary(ctx Context) (FeedbackSummary, error)
}

// Collaborators (ports)

type AuthService interface {
	Login(ctx Context, username, password string) (Session, error)
	Logout(ctx Context, token string) error
	RegisterIdentity(ctx Context, username, password, tier string) (string, error)
	VerifyToken(ctx Context, token string) (Identity, error)
	// CheckProjectAccess fails closed: any error means no access.
	CheckProjectAccess(ctx Context, projectID, userID string) (ProjectAccess, error)
	ProjectOwner(ctx Context, projectID string) (string, error)
}

// SavedFile is the file store's acknowledgement of a write.
type SavedFile struct {
	FileID string
	Path   string
}

type FileStore interface {
	SaveFile(ctx Context, projectID, filePath, content string) (SavedFile, error)
	DeleteFile(ctx Context, projectID, filename string) error
}

type VectorStore interface {
	AddDocuments(ctx Context, collection string, documents []string, metadatas []map[string]any) error
	// Query returns up to n document texts; an empty queryText lists the
	// collection (the add/query contract has no dedicated fetch-all).
	Query(ctx Context, collection, queryText string, n int) ([]string, error)
}

type SnapshotStore interface {
	CreateSnapshot(ctx Context, projectID, userID, message string) (string, error)
	DeleteSnapshot(ctx Context, projectID, snapshotID string) error
}

// Relationship is one extracted graph edge.
type Relationship struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

type GraphStore interface {
	// WriteRelationships is idempotent on the collaborator side.
	WriteRelationships(ctx Context, projectID string, rels []Relationship) error
}

// ExtractedFile is one file produced by the extractor.
type ExtractedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Extraction is the extractor's opaque (documents) → (files, relationships) result.
type Extraction struct {
	Files         []ExtractedFile
	Relationships []Relationship
}

type Extractor interface {
	Extract(ctx Context, projectID string, documents []string) (Extraction, error)
}

// ChatRequest carries everything the provider needs for one completion.
type ChatRequest struct {
	System  string
	Context []string
	History []Turn
	Query   string
}

// ChatResult is the opaque (prompt, history) → (text, cost) outcome.
type ChatResult struct {
	Text             string
	Cost             float64
	PromptTokens     int
	CompletionTokens int
	Model            string
}

type LLMProvider interface {
	Complete(ctx Context, req ChatRequest) (ChatResult, error)
}

// Context is an alias so domain signatures stay decoupled from adapters;
// usecases and adapters pass context.Context through.
type Context = context.Context
