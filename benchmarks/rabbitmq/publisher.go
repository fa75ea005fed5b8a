//go:build benchmarks
// +build benchmarks

package rabbitmq

import (
	"sync"

	"camphub/event-relay/outbox"
	"camphub/event-relay/rabbitmq"
)

// CountingPublisher wraps a real RabbitMQ publisher and counts deliveries so
// that benchmarks can wait for a whole batch to reach the broker.
type CountingPublisher struct {
	sync.RWMutex
	realPublisher rabbitmq.Publisher
	msgsPublished int
}

func NewCountingPublisher(url, exchange string) *CountingPublisher {
	return &CountingPublisher{
		realPublisher: rabbitmq.NewPublisher(url, exchange),
	}
}

func (cp *CountingPublisher) GetMessagesPublishedCount() int {
	cp.RLock()
	defer cp.RUnlock()
	return cp.msgsPublished
}

func (cp *CountingPublisher) ResetMessagesPublishedCount() {
	cp.Lock()
	defer cp.Unlock()
	cp.msgsPublished = 0
}

func (cp *CountingPublisher) PublishMessage(m *outbox.Message) error {
	err := cp.realPublisher.PublishMessage(m)

	cp.Lock()
	cp.msgsPublished++
	cp.Unlock()

	return err
}

func (cp *CountingPublisher) Close() error {
	return cp.realPublisher.Close()
}
