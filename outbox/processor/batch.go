package processor

import (
	"context"
	"errors"
	"io"

	nr "github.com/newrelic/go-agent/v3/newrelic"

	"camphub/event-relay/log"
	"camphub/event-relay/newrelic"
	"camphub/event-relay/outbox"
	"camphub/event-relay/prometheus"

	"github.com/sirupsen/logrus"
)

type repository interface {
	CommitBatch(ctx context.Context, batch *outbox.Batch)
}

// Publisher is satisfied by both broker publishers.
type Publisher interface {
	io.Closer
	PublishMessage(m *outbox.Message) error
}

func NewBatchProcessor(r repository, p Publisher, nrApp *nr.Application, maxAttempts int) BatchProcessor {
	return BatchProcessor{
		repo:        r,
		publisher:   p,
		nrApp:       nrApp,
		maxAttempts: maxAttempts,
	}
}

// BatchProcessor drains claimed batches from the poller, hands each event to
// the broker publisher and commits the per-message results in one go. Publish
// failures are recorded on the message so the commit can decide between a
// retry and dead-lettering.
type BatchProcessor struct {
	repo        repository
	publisher   Publisher
	nrApp       *nr.Application
	maxAttempts int
}

func (p BatchProcessor) ListenAndProcess(parent context.Context, batches <-chan *outbox.Batch) {
	for {
		select {
		case b := <-batches:
			if b == nil || len(b.Messages) == 0 {
				break
			}

			ctx, txn := newrelic.ContextWithTxn(parent, "processor: BatchProcessor.ListenAndProcess()", p.nrApp)
			for _, msg := range b.Messages {
				if msg.EventType == "" {
					log.Logger.WithFields(logrus.Fields{"message_id": msg.Id}).Error("an event without a type was detected in the outbox")
					err := errors.New("this event has no type")
					msg.ErrorReason = err
					txn.NoticeError(err)
				} else {
					log.Logger.WithFields(logrus.Fields{"message": msg}).Debug("sending event to broker publisher")
					if err := p.publisher.PublishMessage(msg); err != nil {
						log.Logger.WithError(err).Debug("error encountered whilst publishing a batch event to the broker")
						msg.ErrorReason = err
						txn.NoticeError(err)
					}
				}
				prometheus.RecordDispatchOutcome(msg.Outcome(p.maxAttempts).String())
			}
			p.repo.CommitBatch(ctx, b)
			txn.End()
			break
		case <-parent.Done():
			return
		}
	}
}
