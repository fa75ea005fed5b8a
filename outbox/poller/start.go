package poller

import (
	"context"

	"camphub/event-relay/config"
	"camphub/event-relay/kafka"
	"camphub/event-relay/log"
	"camphub/event-relay/outbox"
	"camphub/event-relay/outbox/notify"
	"camphub/event-relay/outbox/processor"
	"camphub/event-relay/rabbitmq"

	nr "github.com/newrelic/go-agent/v3/newrelic"
)

// Start wires the dispatcher together. It starts one polling goroutine plus
// WriteConcurrency processors draining the shared batch channel, and returns
// a func that releases the broker connection on shutdown.
func Start(ctx context.Context, cfg *config.Config, repo outbox.Repository, nrApp *nr.Application) func() {
	logger := log.Logger.WithField("config", cfg)
	logger.Info("starting outbox event dispatcher")

	batchCh := make(chan *outbox.Batch, 10)
	pub := newPublisher(cfg)
	waiter := newWaiter(cfg)

	go New(repo, batchCh, waiter).Poll(ctx, cfg.GetPollIntervalDurationInMs())

	proc := processor.NewBatchProcessor(repo, pub, nrApp, cfg.PublishAttempts)
	for i := 0; i < cfg.WriteConcurrency; i++ {
		go proc.ListenAndProcess(ctx, batchCh)
	}

	return func() {
		if err := pub.Close(); err != nil {
			log.Logger.WithError(err).Error("error closing the broker publisher during shutdown")
		}

		if l, ok := waiter.(*notify.Listener); ok {
			if err := l.Close(context.Background()); err != nil {
				log.Logger.WithError(err).Error("error closing the outbox notification listener during shutdown")
			}
		}
	}
}

func newPublisher(cfg *config.Config) processor.Publisher {
	if cfg.Broker.Kafka() {
		return kafka.NewPublisher(cfg.KafkaHost, kafka.NewSaramaConfig(cfg.KafkaTLSEnable, cfg.KafkaTLSSkipVerify))
	}

	return rabbitmq.NewPublisher(cfg.AmqpUrl, cfg.AmqpExchange)
}

// notifications are only available on Postgres, every other combination
// falls back to fixed-interval polling
func newWaiter(cfg *config.Config) Waiter {
	if cfg.ListenNotify && cfg.DBDriver.Postgres() {
		return notify.NewListener(cfg)
	}

	return NewIntervalWaiter(cfg.GetPollIntervalDurationInMs())
}
