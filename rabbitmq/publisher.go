package rabbitmq

import (
	"context"
	"fmt"
	"io"

	"camphub/event-relay/log"
	"camphub/event-relay/outbox"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	io.Closer
	PublishMessage(m *outbox.Message) error
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

func NewPublisher(url, exchange string) Publisher {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Logger.Panicf("could not connect to RabbitMQ: %s", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Logger.Panicf("could not open a RabbitMQ channel: %s", err)
	}

	p := &publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
	}

	if err = p.declareExchange(); err != nil {
		log.Logger.Panicf("could not declare the %s exchange: %s", exchange, err)
	}

	return p
}

func NewPublisherWithChannel(ch channel, exchange string) (Publisher, error) {
	p := &publisher{
		ch:       ch,
		exchange: exchange,
	}

	if err := p.declareExchange(); err != nil {
		return nil, err
	}

	return p, nil
}

// PublishMessage publishes one outbox event on the topic exchange with the
// event type as the routing key. Deliveries are persistent so that a broker
// restart does not lose events the relay already marked as dispatched.
func (p *publisher) PublishMessage(m *outbox.Message) error {
	if err := p.reopenChannelIfClosed(); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     m.Id.String(),
		Type:          m.EventType,
		CorrelationId: m.TraceId,
		AppId:         m.Source,
		Body:          m.PayloadJson,
	}

	if err := p.ch.PublishWithContext(context.Background(), p.exchange, m.EventType, false, false, pub); err != nil {
		wrapErr := fmt.Errorf("error publishing event to RabbitMQ: %w", err)
		log.Logger.Error(wrapErr)
		return wrapErr
	}

	log.Logger.Debugf("published event to RabbitMQ (exchange: %s, routing key: %s)", p.exchange, m.EventType)

	return nil
}

func (p *publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}

	if p.conn == nil {
		return nil
	}

	return p.conn.Close()
}

func (p *publisher) declareExchange() error {
	return p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil)
}

func (p *publisher) reopenChannelIfClosed() error {
	if !p.ch.IsClosed() {
		return nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("the RabbitMQ connection is no longer open")
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("error reopening a RabbitMQ channel: %w", err)
	}

	p.ch = ch

	return p.declareExchange()
}
