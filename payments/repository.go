package payments

import (
	"context"
	"database/sql"
	"time"

	"camphub/event-relay/config"

	"github.com/pkg/errors"
)

// Tx is the subset of *sql.Tx the repository needs. All repository calls run
// on the caller's transaction so the check-then-act sequence and the outbox
// enqueue commit or roll back together.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repository struct {
	queryProvider queryProvider
}

func NewRepository(cfg *config.Config) Repository {
	return NewRepositoryWithQueryProvider(newQueryProvider(cfg.DBDriver))
}

func NewRepositoryWithQueryProvider(qp queryProvider) Repository {
	return Repository{
		queryProvider: qp,
	}
}

// FindByRegistrationId returns the payment for the registration, or nil when
// none exists yet.
func (r Repository) FindByRegistrationId(ctx context.Context, tx Tx, registrationId string) (*Payment, error) {
	row := tx.QueryRowContext(ctx, r.queryProvider.FindByRegistrationIdSql(), registrationId)

	p := &Payment{}
	err := row.Scan(&p.Id, &p.RegistrationId, &p.ParticipantId, &p.AmountCents, &p.Currency, &p.LinkUrl, &p.Status, &p.CreatedAt, &p.ConfirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "payments: error finding payment")
	}

	return p, nil
}

// Create inserts the payment, ignoring a concurrent duplicate for the same
// registration. It reports whether this call actually created the row.
func (r Repository) Create(ctx context.Context, tx Tx, p *Payment) (bool, error) {
	res, err := tx.ExecContext(ctx, r.queryProvider.InsertIgnoringDuplicateSql(), p.Id, p.RegistrationId, p.ParticipantId, p.AmountCents, p.Currency, p.LinkUrl, p.Status)
	if err != nil {
		return false, errors.Wrap(err, "payments: error creating payment")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "payments: error determining created rows")
	}

	return affected > 0, nil
}

// Confirm marks the registration's payment as confirmed. An unknown
// registration or an already confirmed payment affects no rows, which is
// reported rather than treated as an error.
func (r Repository) Confirm(ctx context.Context, tx Tx, registrationId string, confirmedAt time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, r.queryProvider.ConfirmSql(), StatusConfirmed, confirmedAt, registrationId, StatusConfirmed)
	if err != nil {
		return false, errors.Wrap(err, "payments: error confirming payment")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "payments: error determining confirmed rows")
	}

	return affected > 0, nil
}
