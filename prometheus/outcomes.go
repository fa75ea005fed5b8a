package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchOutcomes *prom.CounterVec
	consumedMessages *prom.CounterVec
)

func init() {
	dispatchOutcomes = promauto.NewCounterVec(prom.CounterOpts{
		Name: "event_relay_dispatch_outcomes_total",
		Help: "Dispatch attempts partitioned by outcome (delivered, retrying or dead_lettered)",
	}, []string{"outcome"})

	consumedMessages = promauto.NewCounterVec(prom.CounterOpts{
		Name: "event_relay_consumed_messages_total",
		Help: "Consumed broker messages partitioned by result",
	}, []string{"result"})
}

func RecordDispatchOutcome(outcome string) {
	dispatchOutcomes.WithLabelValues(outcome).Inc()
}

func RecordConsumedMessage(result string) {
	consumedMessages.WithLabelValues(result).Inc()
}
