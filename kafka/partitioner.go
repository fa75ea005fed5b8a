package kafka

import (
	"github.com/Shopify/sarama"
)

// OutboxPartitioner hashes on the partition key carried by a MessageKey when
// one is present, falling back to the message key itself. Events that share a
// trace ID therefore share a partition and preserve their relative order.
type OutboxPartitioner struct {
	topic           string
	hashPartitioner sarama.Partitioner
}

func NewOutboxPartitioner(topic string) sarama.Partitioner {
	return NewOutboxPartitionerWithCustomPartitioner(topic, sarama.NewHashPartitioner(topic))
}

func NewOutboxPartitionerWithCustomPartitioner(topic string, p sarama.Partitioner) sarama.Partitioner {
	return OutboxPartitioner{
		topic:           topic,
		hashPartitioner: p,
	}
}

func (o OutboxPartitioner) Partition(message *sarama.ProducerMessage, numPartitions int32) (int32, error) {
	mk, ok := message.Key.(MessageKey)
	if !ok {
		return o.hashPartitioner.Partition(message, numPartitions)
	}

	// swap the key in for hashing only, and restore it afterwards in case a
	// future sarama version mutates the message inside its hash partitioner
	message.Key = sarama.StringEncoder(mk.KeyForPartitioning())

	ptn, err := o.hashPartitioner.Partition(message, numPartitions)

	message.Key = mk

	return ptn, err
}

func (o OutboxPartitioner) RequiresConsistency() bool {
	return true
}
