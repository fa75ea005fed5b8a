package outbox

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Batch struct {
	Id       uuid.UUID
	Messages []*Message
}

// Message is one row of the transactional outbox. A row with ProcessedAt set
// is terminal and is never selected into a batch again.
type Message struct {
	Id           uuid.UUID
	BatchId      *uuid.UUID
	EventType    string
	Source       string
	TraceId      string
	PayloadJson  []byte
	CreatedAt    time.Time
	ClaimedAt    sql.NullTime
	ProcessedAt  sql.NullTime
	Attempts     int
	LastError    sql.NullString
	DeadLettered bool

	// ErrorReason records a publish failure during the current dispatch
	// cycle, it is not persisted as-is (see Repository.CommitBatch).
	ErrorReason error
}
