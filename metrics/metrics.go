// Package metrics exports encoder activity as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chase3718/lou-midi/midi"
)

const namespace = "lou_midi"

// Collector implements midi.Observer.
type Collector struct {
	messages *prometheus.CounterVec
	bytes    prometheus.Counter
	dropped  *prometheus.CounterVec
}

var _ midi.Observer = (*Collector)(nil)

// NewCollector registers the encoder counters with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "messages_total",
				Help:      "Messages written to the transport, by type",
			},
			[]string{"type"},
		),
		bytes: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "bytes_total",
				Help:      "Bytes written to the transport",
			},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "dropped_total",
				Help:      "Sends discarded by the encoder guards, by type and reason",
			},
			[]string{"type", "reason"},
		),
	}
}

// MessageSent counts a written message and its bytes.
func (c *Collector) MessageSent(t midi.MessageType, n int) {
	c.messages.WithLabelValues(t.String()).Inc()
	c.bytes.Add(float64(n))
}

// MessageDropped counts a message the encoder refused to send.
func (c *Collector) MessageDropped(t midi.MessageType, reason string) {
	c.dropped.WithLabelValues(t.String(), reason).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
