package kafka

import (
	"fmt"
	"io"

	"camphub/event-relay/log"
	"camphub/event-relay/outbox"

	"github.com/Shopify/sarama"
)

type Publisher interface {
	io.Closer
	PublishMessage(m *outbox.Message) error
}

type publisher struct {
	producer sarama.SyncProducer
}

// PublishMessage produces one outbox event on the topic named after the event
// type. The trace ID is used as the partition key so that every event from the
// same registration flow lands on the same partition, in order.
func (p publisher) PublishMessage(m *outbox.Message) error {
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   m.EventType,
		Key:     newMessageKey(m.Id.String(), m.TraceId),
		Headers: createRecordHeaders(m),
		Value:   sarama.ByteEncoder(m.PayloadJson),
	})

	if err != nil {
		wrapErr := fmt.Errorf("error producing event in Kafka: %w", err)
		log.Logger.Error(wrapErr)
		return wrapErr
	}

	log.Logger.Debugf("produced event in Kafka (topic: %s, partition: %d, offset: %d)", m.EventType, partition, offset)

	return nil
}

func NewPublisher(kafkaHost []string, cfg *sarama.Config) Publisher {
	return NewPublisherWithProducer(newProducer(cfg, kafkaHost))
}

func NewPublisherWithProducer(prod sarama.SyncProducer) Publisher {
	return &publisher{
		producer: prod,
	}
}

func newProducer(cfg *sarama.Config, kafkaHosts []string) sarama.SyncProducer {
	producer, err := sarama.NewSyncProducer(kafkaHosts, cfg)
	if err != nil {
		log.Logger.Panicf("could not start kafka producer: %s", err)
	}

	return producer
}

func (p publisher) Close() error {
	return p.producer.Close()
}

func createRecordHeaders(m *outbox.Message) []sarama.RecordHeader {
	recs := []sarama.RecordHeader{
		{
			Key:   []byte("x-event-id"),
			Value: []byte(m.Id.String()),
		},
		{
			Key:   []byte("x-event-source"),
			Value: []byte(m.Source),
		},
	}

	if m.TraceId != "" {
		recs = append(recs, sarama.RecordHeader{
			Key:   []byte("x-trace-id"),
			Value: []byte(m.TraceId),
		})
	}

	return recs
}
