package webrtc

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

func TestSDPTypeMapping(t *testing.T) {
	assert.Equal(t, webrtc.SDPTypeOffer, sdpType(domain.SDPTypeOffer))
	assert.Equal(t, webrtc.SDPTypeAnswer, sdpType(domain.SDPTypeAnswer))
}

func TestConnectionStateMapping(t *testing.T) {
	tests := []struct {
		in   webrtc.PeerConnectionState
		want domain.ConnectionState
	}{
		{webrtc.PeerConnectionStateNew, domain.ConnectionNew},
		{webrtc.PeerConnectionStateConnecting, domain.ConnectionConnecting},
		{webrtc.PeerConnectionStateConnected, domain.ConnectionConnected},
		{webrtc.PeerConnectionStateDisconnected, domain.ConnectionDisconnected},
		{webrtc.PeerConnectionStateFailed, domain.ConnectionFailed},
		{webrtc.PeerConnectionStateClosed, domain.ConnectionClosed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, connectionState(tt.in))
	}
}

func TestParseRTCP_ReceiverReports(t *testing.T) {
	packets := []rtcp.Packet{
		&rtcp.ReceiverReport{
			Reports: []rtcp.ReceptionReport{
				{FractionLost: 51, Jitter: 20}, // 51/255 = 0.2 loss
				{FractionLost: 0, Jitter: 10},
			},
		},
	}

	metrics, ok := parseRTCP(packets)
	assert.True(t, ok)
	assert.InDelta(t, 0.1, metrics.PacketLoss, 0.001)
	assert.Equal(t, 15*time.Millisecond, metrics.Jitter)
}

func TestParseRTCP_NacksCountAsLoss(t *testing.T) {
	packets := []rtcp.Packet{
		&rtcp.TransportLayerNack{
			Nacks: []rtcp.NackPair{{PacketID: 1}, {PacketID: 2}},
		},
	}

	metrics, ok := parseRTCP(packets)
	assert.True(t, ok)
	assert.Greater(t, metrics.PacketLoss, 0.0)
}

func TestParseRTCP_NothingMeasurable(t *testing.T) {
	_, ok := parseRTCP(nil)
	assert.False(t, ok)

	_, ok = parseRTCP([]rtcp.Packet{&rtcp.SenderReport{}})
	assert.False(t, ok)
}
