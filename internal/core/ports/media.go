package ports

import (
	"context"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
)

// PeerConnection is the surface of the underlying connection primitive a
// peer link depends on. Implementations must accept a remote offer while
// a local offer is pending (rolling the local one back), which is how
// glare resolution avoids an extra round trip.
type PeerConnection interface {
	CreateOffer(ctx context.Context) (domain.SessionDescription, error)
	CreateAnswer(ctx context.Context) (domain.SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error
	AddICECandidate(ctx context.Context, cand domain.ICECandidate) error

	// OnConnectionStateChange registers the single state listener. The
	// callback may fire from the primitive's own goroutines.
	OnConnectionStateChange(fn func(domain.ConnectionState))

	// OnICECandidate registers the listener for locally gathered
	// candidates, to be relayed to the remote side.
	OnICECandidate(fn func(domain.ICECandidate))

	Close() error
}

// ConnectionFactory builds one connection primitive per peer link.
type ConnectionFactory interface {
	NewConnection(ctx context.Context, remoteID domain.ParticipantID) (PeerConnection, error)
}
