package consumer

import (
	"context"
	"io"
	"strconv"
	"time"

	"camphub/event-relay/config"
	"camphub/event-relay/event"
	"camphub/event-relay/log"
	"camphub/event-relay/prometheus"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	attemptsHeader = "x-attempts"
	reasonHeader   = "x-failure-reason"
)

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Close() error
}

// dialFunc returns a fresh channel plus the connection that owns it, so the
// consumer can release the socket and not just the channel when it reconnects.
type dialFunc func() (channel, io.Closer, error)

// Consumer pulls events from a durable queue bound to the topic exchange and
// routes them to registered handlers. A failing delivery is republished with
// an incremented attempt header until the attempt limit is reached, after
// which it is parked on the dead letter queue and acknowledged.
type Consumer struct {
	exchange    string
	queue       string
	bindingKeys []string
	prefetch    int
	maxAttempts int
	emptyDelay  time.Duration
	redialDelay time.Duration
	handlers    Registry
	dial        dialFunc
	ch          channel
	conn        io.Closer
}

func New(cfg *config.Config, handlers Registry) *Consumer {
	url := cfg.AmqpUrl

	return &Consumer{
		exchange:    cfg.AmqpExchange,
		queue:       cfg.ConsumerQueue,
		bindingKeys: cfg.ConsumerBindingKeys,
		prefetch:    cfg.ConsumerPrefetch,
		maxAttempts: cfg.ConsumerMaxAttempts,
		emptyDelay:  time.Millisecond * 250,
		redialDelay: time.Second * 5,
		handlers:    handlers,
		dial: func() (channel, io.Closer, error) {
			conn, err := amqp.Dial(url)
			if err != nil {
				return nil, nil, err
			}

			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, err
			}

			return ch, conn, nil
		},
	}
}

// Consume blocks until ctx is cancelled, reconnecting with a fixed delay
// whenever the broker connection is lost.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.closeConnection()
			return
		}

		if c.ch == nil {
			if err := c.connect(); err != nil {
				log.Logger.WithError(err).Error("unable to connect the consumer to the broker")
				sleepContext(ctx, c.redialDelay)
				continue
			}
		}

		if err := c.pull(ctx); err != nil {
			log.Logger.WithError(err).Error("the consumer lost its broker channel, reconnecting")
			c.closeConnection()
			sleepContext(ctx, c.redialDelay)
		}
	}
}

func (c *Consumer) connect() error {
	ch, conn, err := c.dial()
	if err != nil {
		return err
	}

	c.ch = ch
	c.conn = conn

	if err = declareTopology(ch, c.exchange, c.queue, c.bindingKeys); err != nil {
		c.closeConnection()
		return err
	}

	if err = ch.Qos(c.prefetch, 0, false); err != nil {
		c.closeConnection()
		return err
	}

	return nil
}

// pull drains the queue one delivery at a time, sleeping briefly when it is
// empty. It returns only on a channel error, handler errors are dealt with
// in place.
func (c *Consumer) pull(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		d, ok, err := c.ch.Get(c.queue, false)
		if err != nil {
			return err
		}

		if !ok {
			sleepContext(ctx, c.emptyDelay)
			continue
		}

		if err = c.handleDelivery(ctx, d); err != nil {
			return err
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	env, err := event.Unmarshal(d.Body)
	if err != nil {
		log.Logger.WithError(err).WithFields(logrus.Fields{"message_id": d.MessageId}).Error("discarding a malformed event")
		prometheus.RecordConsumedMessage("malformed")
		return c.ch.Ack(d.DeliveryTag, false)
	}

	h, ok := c.handlers.handlerFor(env.Type)
	if !ok {
		log.Logger.WithFields(logrus.Fields{"event_id": env.Id, "event_type": env.Type}).Debug("ignoring an event with no registered handler")
		prometheus.RecordConsumedMessage("ignored")
		return c.ch.Ack(d.DeliveryTag, false)
	}

	if err = h.Handle(ctx, env); err == nil {
		prometheus.RecordConsumedMessage("handled")
		return c.ch.Ack(d.DeliveryTag, false)
	}

	attempts := deliveryAttempts(d) + 1
	logger := log.Logger.WithError(err).WithFields(logrus.Fields{"event_id": env.Id, "event_type": env.Type, "attempts": attempts})

	if attempts >= c.maxAttempts {
		logger.Error("dead lettering an event after exhausting its attempts")
		prometheus.RecordConsumedMessage("dead_lettered")
		return c.deadLetter(ctx, d, err)
	}

	logger.Warn("event handling failed, requeueing for another attempt")
	prometheus.RecordConsumedMessage("retried")

	return c.requeue(ctx, d, attempts)
}

// requeue republishes the delivery directly to the queue via the default
// exchange, carrying the new attempt count, and then acknowledges the
// original so the queue does not grow a duplicate.
func (c *Consumer) requeue(ctx context.Context, d amqp.Delivery, attempts int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempts)

	err := c.ch.PublishWithContext(ctx, "", c.queue, false, false, republishing(d, headers))
	if err != nil {
		// leave the original delivery unacked so a broker redelivery keeps it alive
		_ = c.ch.Nack(d.DeliveryTag, false, true)
		return err
	}

	return c.ch.Ack(d.DeliveryTag, false)
}

func (c *Consumer) deadLetter(ctx context.Context, d amqp.Delivery, reason error) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[reasonHeader] = reason.Error()

	err := c.ch.PublishWithContext(ctx, "", deadLetterQueue(c.queue), false, false, republishing(d, headers))
	if err != nil {
		_ = c.ch.Nack(d.DeliveryTag, false, true)
		return err
	}

	return c.ch.Ack(d.DeliveryTag, false)
}

// closeConnection tears down the channel and its owning connection, the
// channel alone would leave the socket and its reader goroutine behind.
func (c *Consumer) closeConnection() {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func declareTopology(ch channel, exchange, queue string, bindingKeys []string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	for _, key := range bindingKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return err
		}
	}

	if _, err := ch.QueueDeclare(deadLetterQueue(queue), true, false, false, false, nil); err != nil {
		return err
	}

	return nil
}

func deadLetterQueue(queue string) string {
	return queue + ".dlq"
}

func deliveryAttempts(d amqp.Delivery) int {
	v, ok := d.Headers[attemptsHeader]
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	}

	return 0
}

func republishing(d amqp.Delivery, headers amqp.Table) amqp.Publishing {
	return amqp.Publishing{
		Headers:       headers,
		ContentType:   d.ContentType,
		DeliveryMode:  amqp.Persistent,
		MessageId:     d.MessageId,
		Type:          d.Type,
		CorrelationId: d.CorrelationId,
		AppId:         d.AppId,
		Body:          d.Body,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
