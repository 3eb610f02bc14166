package ports

import (
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

// MetricsRecorder receives negotiation-core events for monitoring. The
// Prometheus collector implements it; tests use NopMetrics.
type MetricsRecorder interface {
	RecordLinkState(callID domain.CallID, state domain.ConnectionState)
	RecordSignal(kind domain.SignalKind, outbound bool)
	RecordGlareResolved(initiatorWon bool)
	RecordDuplicateDropped(kind domain.SignalKind)
	RecordRetryAttempt(callID domain.CallID)
	RecordLinkAbandoned(callID domain.CallID)

	CallStarted(callType string)
	CallEnded(callType string, duration time.Duration)
	ParticipantJoined(callID string)
	ParticipantLeft(callID string)
}

// NopMetrics discards every event.
type NopMetrics struct{}

func (NopMetrics) RecordLinkState(domain.CallID, domain.ConnectionState) {}
func (NopMetrics) RecordSignal(domain.SignalKind, bool)                  {}
func (NopMetrics) RecordGlareResolved(bool)                              {}
func (NopMetrics) RecordDuplicateDropped(domain.SignalKind)              {}
func (NopMetrics) RecordRetryAttempt(domain.CallID)                      {}
func (NopMetrics) RecordLinkAbandoned(domain.CallID)                     {}
func (NopMetrics) CallStarted(string)                                    {}
func (NopMetrics) CallEnded(string, time.Duration)                       {}
func (NopMetrics) ParticipantJoined(string)                              {}
func (NopMetrics) ParticipantLeft(string)                                {}
