package payments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"camphub/event-relay/config"
	"camphub/event-relay/event"
	"camphub/event-relay/log"
	"camphub/event-relay/outbox"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type enqueuer interface {
	Enqueue(ctx context.Context, tx outbox.Tx, eventType string, data interface{}, opts ...outbox.EnqueueOption) error
}

// RequestedHandler reacts to payment.requested.v1. The first delivery creates
// the payment row and stages payment.link.created.v1 on the same transaction,
// any redelivery finds the existing row and does nothing.
type RequestedHandler struct {
	db          *sql.DB
	repo        Repository
	writer      enqueuer
	linkBaseUrl string
}

func NewRequestedHandler(db *sql.DB, w enqueuer, cfg *config.Config) *RequestedHandler {
	return &RequestedHandler{
		db:          db,
		repo:        NewRepository(cfg),
		writer:      w,
		linkBaseUrl: strings.TrimRight(cfg.PaymentLinkBaseUrl, "/"),
	}
}

func (h *RequestedHandler) Handle(ctx context.Context, e event.Envelope) error {
	var data event.PaymentRequested
	if err := e.DecodeData(&data); err != nil {
		return err
	}

	if data.RegistrationId == "" {
		return errors.New("payments: payment.requested.v1 event has no registration id")
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "payments: unable to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := h.repo.FindByRegistrationId(ctx, tx, data.RegistrationId)
	if err != nil {
		return err
	}

	if existing != nil {
		log.Logger.WithFields(logrus.Fields{"registration_id": data.RegistrationId, "payment_id": existing.Id}).Debug("a payment already exists for this registration")
		return tx.Commit()
	}

	p := &Payment{
		Id:             uuid.New(),
		RegistrationId: data.RegistrationId,
		ParticipantId:  data.ParticipantId,
		AmountCents:    data.AmountCents,
		Currency:       data.Currency,
		Status:         StatusPending,
	}
	p.LinkUrl = h.paymentLink(p.Id)

	created, err := h.repo.Create(ctx, tx, p)
	if err != nil {
		return err
	}

	// a concurrent consumer can win the insert between our lookup and now,
	// in which case its transaction owns the link event
	if !created {
		log.Logger.WithFields(logrus.Fields{"registration_id": data.RegistrationId}).Debug("another consumer created this payment concurrently")
		return tx.Commit()
	}

	err = h.writer.Enqueue(ctx, tx, event.TypePaymentLinkCreated, event.PaymentLinkCreated{
		RegistrationId: p.RegistrationId,
		PaymentId:      p.Id.String(),
		LinkUrl:        p.LinkUrl,
	}, outbox.WithTraceId(e.TraceId))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (h *RequestedHandler) paymentLink(paymentId uuid.UUID) string {
	return fmt.Sprintf("%s/pay/%s", h.linkBaseUrl, paymentId)
}

// ConfirmedHandler reacts to payment.confirmed.v1 and flips the payment to
// its confirmed state. Redeliveries and unknown registrations are no-ops.
type ConfirmedHandler struct {
	db   *sql.DB
	repo Repository
}

func NewConfirmedHandler(db *sql.DB, cfg *config.Config) *ConfirmedHandler {
	return &ConfirmedHandler{
		db:   db,
		repo: NewRepository(cfg),
	}
}

func (h *ConfirmedHandler) Handle(ctx context.Context, e event.Envelope) error {
	var data event.PaymentConfirmed
	if err := e.DecodeData(&data); err != nil {
		return err
	}

	if data.RegistrationId == "" {
		return errors.New("payments: payment.confirmed.v1 event has no registration id")
	}

	paidAt := time.Now().UTC()
	if data.PaidAt != "" {
		parsed, err := time.Parse(time.RFC3339, data.PaidAt)
		if err != nil {
			return errors.Wrap(err, "payments: payment.confirmed.v1 event has a malformed paidAt")
		}
		paidAt = parsed
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "payments: unable to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	confirmed, err := h.repo.Confirm(ctx, tx, data.RegistrationId, paidAt)
	if err != nil {
		return err
	}

	if !confirmed {
		log.Logger.WithFields(logrus.Fields{"registration_id": data.RegistrationId}).Debug("payment is unknown or already confirmed")
	}

	return tx.Commit()
}
