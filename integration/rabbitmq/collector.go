//go:build integration
// +build integration

package rabbitmq

import (
	"bytes"
	"sync"

	"camphub/event-relay/outbox"

	amqp "github.com/rabbitmq/amqp091-go"
)

type MessageExpectation struct {
	Msg *outbox.Message
}

func (e MessageExpectation) matches(d amqp.Delivery) bool {
	return d.RoutingKey == e.Msg.EventType &&
		d.MessageId == e.Msg.Id.String() &&
		d.CorrelationId == e.Msg.TraceId &&
		d.AppId == e.Msg.Source &&
		bytes.Equal(d.Body, e.Msg.PayloadJson)
}

// Collector drains every message published to the given exchange into
// memory so that tests can assert on what reached the broker. The bound
// queue is exclusive and server-named, so parallel test runs do not steal
// each other's messages.
type Collector struct {
	sync.Mutex
	conn       *amqp.Connection
	deliveries []amqp.Delivery
}

func NewCollector(url, exchange string) (*Collector, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}

	if err = ch.QueueBind(q.Name, "#", exchange, false, nil); err != nil {
		return nil, err
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, err
	}

	c := &Collector{conn: conn}
	go func() {
		for d := range msgs {
			c.Lock()
			c.deliveries = append(c.deliveries, d)
			c.Unlock()
		}
	}()

	return c, nil
}

func (c *Collector) FoundAll(exp []MessageExpectation) bool {
	c.Lock()
	defer c.Unlock()

	for _, e := range exp {
		found := false
		for _, d := range c.deliveries {
			if e.matches(d) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func (c *Collector) Received(e MessageExpectation) bool {
	return c.FoundAll([]MessageExpectation{e})
}

func (c *Collector) Close() error {
	return c.conn.Close()
}
