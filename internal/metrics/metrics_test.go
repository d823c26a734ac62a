package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordInbound("text", OutcomeReplied)
	m.RecordInbound("text", OutcomeReplied)
	m.RecordInbound("voice", OutcomeTranscription)
	if got := testutil.ToFloat64(m.InboundTotal.WithLabelValues("text", OutcomeReplied)); got != 2 {
		t.Fatalf("replied text count = %v, want 2", got)
	}

	m.RecordTranscription(errors.New("bad audio"))
	if got := testutil.ToFloat64(m.TranscriptionsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("transcription errors = %v, want 1", got)
	}

	m.RecordModelRequest("gemini", 1500*time.Millisecond, nil)
	if got := testutil.CollectAndCount(m.ModelRequestDuration); got != 1 {
		t.Fatalf("expected one model histogram series, got %d", got)
	}
}

func TestNewMetricsPerRegistry(t *testing.T) {
	// Separate registries must not collide on metric names.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
