package webrtc

import (
	"errors"
	"io"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// MetricsSink receives link measurements derived from RTCP traffic.
type MetricsSink func(remoteID domain.ParticipantID, metrics domain.NetworkMetrics)

// watchRTCP spawns one reader per sender and receiver on pc and feeds
// parsed reports to sink. Readers exit when the connection closes.
func watchRTCP(pc *webrtc.PeerConnection, remoteID domain.ParticipantID, sink MetricsSink, logger *zap.SugaredLogger) {
	for _, transceiver := range pc.GetTransceivers() {
		if sender := transceiver.Sender(); sender != nil {
			go readRTCP(remoteID, func() ([]rtcp.Packet, error) {
				packets, _, err := sender.ReadRTCP()
				return packets, err
			}, sink, logger)
		}
		if receiver := transceiver.Receiver(); receiver != nil {
			go readRTCP(remoteID, func() ([]rtcp.Packet, error) {
				packets, _, err := receiver.ReadRTCP()
				return packets, err
			}, sink, logger)
		}
	}
}

func readRTCP(
	remoteID domain.ParticipantID,
	read func() ([]rtcp.Packet, error),
	sink MetricsSink,
	logger *zap.SugaredLogger,
) {
	for {
		packets, err := read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.Debugw("rtcp reader stopped", "remote_id", remoteID, "error", err)
			}
			return
		}
		if metrics, ok := parseRTCP(packets); ok {
			sink(remoteID, metrics)
		}
	}
}

// parseRTCP extracts quality metrics from a batch of RTCP packets. The
// second return is false when the batch carried nothing measurable.
func parseRTCP(packets []rtcp.Packet) (domain.NetworkMetrics, bool) {
	var totalPacketLoss float64
	var totalJitter uint32
	var totalLatency time.Duration
	reportCount := 0

	for _, packet := range packets {
		switch p := packet.(type) {
		case *rtcp.ReceiverReport:
			for _, report := range p.Reports {
				totalPacketLoss += float64(report.FractionLost) / 255.0
				totalJitter += report.Jitter
				reportCount++

				// RTT estimation from LSR/DLSR, when present.
				if report.LastSenderReport != 0 && report.Delay != 0 {
					totalLatency += time.Duration(report.Delay) * time.Second / 65536
				}
			}

		case *rtcp.TransportLayerNack:
			// NACKs signal loss without a fraction; count them as a
			// full report of loss proportional to the nack count.
			totalPacketLoss += float64(len(p.Nacks)) / 255.0
			reportCount++
		}
	}

	if reportCount == 0 {
		return domain.NetworkMetrics{}, false
	}

	return domain.NetworkMetrics{
		Timestamp:  time.Now(),
		PacketLoss: totalPacketLoss / float64(reportCount),
		Jitter:     time.Duration(totalJitter/uint32(reportCount)) * time.Millisecond,
		Latency:    totalLatency / time.Duration(reportCount),
	}, true
}
