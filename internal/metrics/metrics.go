// Package metrics provides Prometheus metrics for the message pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Inbound outcomes recorded by RecordInbound.
const (
	OutcomeReplied       = "replied"
	OutcomeDuplicate     = "duplicate"
	OutcomeNoPrompt      = "no_prompt"
	OutcomeModelError    = "model_error"
	OutcomeTranscription = "transcription_error"
	OutcomeStorageError  = "storage_error"
	OutcomeDeliveryError = "delivery_error"
	OutcomePanic         = "panic"
)

// Metrics holds all Prometheus collectors of the bot.
type Metrics struct {
	InboundTotal          *prometheus.CounterVec
	DuplicateDeliveries   prometheus.Counter
	ModelRequestDuration  *prometheus.HistogramVec
	TranscriptionsTotal   *prometheus.CounterVec
	FragmentsSentTotal    prometheus.Counter
	DeliveryFailuresTotal prometheus.Counter
	InflightMessages      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InboundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorbot_inbound_total",
				Help: "Inbound messages by kind and terminal outcome",
			},
			[]string{"kind", "outcome"},
		),
		DuplicateDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "tutorbot_duplicate_deliveries_total",
			Help: "Inbound messages dropped because the same id was already in flight",
		}),
		ModelRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutorbot_model_request_duration_seconds",
				Help:    "Duration of model completion requests in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "status"},
		),
		TranscriptionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorbot_transcriptions_total",
				Help: "Voice transcriptions by status",
			},
			[]string{"status"},
		),
		FragmentsSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tutorbot_fragments_sent_total",
			Help: "Reply fragments delivered to users",
		}),
		DeliveryFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tutorbot_delivery_failures_total",
			Help: "Replies whose delivery stopped on a send error",
		}),
		InflightMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tutorbot_inflight_messages",
			Help: "Inbound messages currently being handled",
		}),
	}
}

// RecordInbound counts one handled inbound message.
func (m *Metrics) RecordInbound(kind, outcome string) {
	m.InboundTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordModelRequest observes one completion call.
func (m *Metrics) RecordModelRequest(provider string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelRequestDuration.WithLabelValues(provider, status).Observe(d.Seconds())
}

// RecordTranscription counts one transcription attempt.
func (m *Metrics) RecordTranscription(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TranscriptionsTotal.WithLabelValues(status).Inc()
}
