package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka messages seen by the consumer, by topic and outcome (handled, handler_error, undecodable).",
	}, []string{"topic", "outcome"})

	lastHandled = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "consumer",
		Name:      "last_handled_timestamp_seconds",
		Help:      "Produce time of the newest message handled per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messages, lastHandled)
}

func recordProcessed(msg Message) {
	messages.WithLabelValues(msg.Topic, "handled").Inc()
	if !msg.Timestamp.IsZero() {
		lastHandled.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	messages.WithLabelValues(msg.Topic, "handler_error").Inc()
}

func recordDecodeError(topic string) {
	messages.WithLabelValues(topic, "undecodable").Inc()
}
