package monitoring

import (
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	callsActiveTotal  prometheus.Gauge
	participantsTotal prometheus.Gauge

	// Counters
	signalsTotal      *prometheus.CounterVec
	linkStateTotal    *prometheus.CounterVec
	glareTotal        *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec
	retryAttempts     prometheus.Counter
	linksAbandoned    prometheus.Counter

	// Histograms
	callDuration prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		callsActiveTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "calls_active_total",
			Help: "Total number of calls currently in progress",
		}),

		participantsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "calls_participants_total",
			Help: "Total number of connected call participants",
		}),

		signalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "calls_signals_total",
			Help: "Signaling envelopes processed, by kind and direction",
		}, []string{"kind", "direction"}),

		linkStateTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "calls_link_state_transitions_total",
			Help: "Peer link connection state transitions",
		}, []string{"state"}),

		glareTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "calls_glare_resolutions_total",
			Help: "Simultaneous-offer collisions resolved, by winner side",
		}, []string{"winner"}),

		duplicatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "calls_duplicate_signals_dropped_total",
			Help: "Duplicate signaling envelopes discarded",
		}, []string{"kind"}),

		retryAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calls_link_retry_attempts_total",
			Help: "Peer link reconnection attempts",
		}),

		linksAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calls_links_abandoned_total",
			Help: "Peer links abandoned after exhausting retries",
		}),

		callDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "calls_duration_seconds",
			Help:    "Duration of completed calls",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
	}
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func (p *PrometheusCollector) RecordLinkState(callID domain.CallID, state domain.ConnectionState) {
	p.linkStateTotal.WithLabelValues(string(state)).Inc()
}

func (p *PrometheusCollector) RecordSignal(kind domain.SignalKind, outbound bool) {
	direction := "inbound"
	if outbound {
		direction = "outbound"
	}
	p.signalsTotal.WithLabelValues(string(kind), direction).Inc()
}

func (p *PrometheusCollector) RecordGlareResolved(initiatorWon bool) {
	winner := "responder"
	if initiatorWon {
		winner = "initiator"
	}
	p.glareTotal.WithLabelValues(winner).Inc()
}

func (p *PrometheusCollector) RecordDuplicateDropped(kind domain.SignalKind) {
	p.duplicatesDropped.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordRetryAttempt(callID domain.CallID) {
	p.retryAttempts.Inc()
}

func (p *PrometheusCollector) RecordLinkAbandoned(callID domain.CallID) {
	p.linksAbandoned.Inc()
}

func (p *PrometheusCollector) CallStarted(callType string) {
	p.callsActiveTotal.Inc()
}

func (p *PrometheusCollector) CallEnded(callType string, duration time.Duration) {
	p.callsActiveTotal.Dec()
	p.callDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) ParticipantJoined(callID string) {
	p.participantsTotal.Inc()
}

func (p *PrometheusCollector) ParticipantLeft(callID string) {
	p.participantsTotal.Dec()
}
