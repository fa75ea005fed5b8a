//go:build benchmarks
// +build benchmarks

package benchmarks

import (
	"context"
	"testing"

	"camphub/event-relay/outbox"
	"camphub/event-relay/outbox/processor"
)

const (
	numEventsToPopulateOutboxWith = 10000
	// beware when changing this value, if you are doing benchmarks between 2 different
	// implementations then this value should remain the same for each benchmark run
	batchSize = 50
)

func BenchmarkOutboxPollAndPublishToBroker(b *testing.B) {
	cfg.BatchSize = batchSize
	repo = outbox.NewRepository(db.Connection(), cfg)
	batchCh := make(chan *outbox.Batch)
	proc := processor.NewBatchProcessor(repo, pub, nil, cfg.PublishAttempts)
	go proc.ListenAndProcess(context.Background(), batchCh)

	purgeOutboxTable()
	populateOutbox()
	b.ResetTimer()

	// this simulates the poller, we can't use the real poller.Poller implementation
	// because it is designed to be a long-running process and it's difficult to reliably
	// measure the performance of it, instead we implement the same simple for loop here
	// but wait for the publisher to deliver all messages in the batch
	for i := 0; i < b.N; i++ {
		batch, err := repo.GetBatch()
		if err != nil {
			b.Fatalf("an error occurred during repo.GetBatch(): %s", err)
		}

		batchCh <- batch
		// wait for the messages to reach the broker
		for {
			if cpub.GetMessagesPublishedCount() == batchSize {
				cpub.ResetMessagesPublishedCount()
				break
			}
		}
	}
}

func populateOutbox() {
	var msgs []*outbox.Message
	for i := 0; i < numEventsToPopulateOutboxWith; i++ {
		msg := &outbox.Message{
			EventType:   "payment.requested.v1",
			Source:      "camp-registration",
			TraceId:     "trace-bench",
			PayloadJson: []byte(`{"registrationId": "reg-bench", "amountCents": 100}`),
		}
		msgs = append(msgs, msg)
	}

	insertOutboxMessages(msgs)
}
