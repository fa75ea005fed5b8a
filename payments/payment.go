package payments

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

// Payment is one row in the payments table. The registration id carries the
// idempotency guarantee, the table holds at most one payment per registration.
type Payment struct {
	Id             uuid.UUID
	RegistrationId string
	ParticipantId  string
	AmountCents    int64
	Currency       string
	LinkUrl        string
	Status         string
	CreatedAt      time.Time
	ConfirmedAt    sql.NullTime
}
