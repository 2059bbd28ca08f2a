package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Aggregate types published through the outbox.
const (
	AggregateTransaction = "transaction"
	AggregateDispute     = "dispute"
)

// Event types consumed by the notification and wallet-ledger collaborators.
// escrow.released and escrow.refunded carry the money movements decided by
// the escrow core; the ledger itself lives outside this service.
const (
	EventTransactionCreated   = "transaction.created"
	EventPaymentReceived      = "transaction.payment_received"
	EventTicketTransferred    = "transaction.ticket_transferred"
	EventTransactionCancelled = "transaction.cancelled"
	EventTransactionDisputed  = "transaction.disputed"
	EventEscrowReleased       = "escrow.released"
	EventEscrowRefunded       = "escrow.refunded"
	EventDisputeResolved      = "dispute.resolved"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Entry is a transactional outbox record, written in the same database
// transaction as the state change it announces.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    5,
		CreatedAt:     time.Now(),
	}
}

// Repository defines the interface for outbox persistence.
type Repository interface {
	// Insert creates a new outbox entry (typically inside a transaction)
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns pending outbox entries up to the given limit
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	// MarkPublished marks an outbox entry as published
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed marks an outbox entry as failed and increments retry count
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
