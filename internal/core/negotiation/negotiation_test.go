package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

// fakeChannel records every envelope sent through it.
type fakeChannel struct {
	mu   sync.Mutex
	sent []domain.Envelope
	err  error
}

func (c *fakeChannel) Send(ctx context.Context, env domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) sentKinds() []domain.SignalKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]domain.SignalKind, len(c.sent))
	for i, env := range c.sent {
		kinds[i] = env.Kind
	}
	return kinds
}

func (c *fakeChannel) lastTo(target domain.ParticipantID, kind domain.SignalKind) (domain.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].TargetID == target && c.sent[i].Kind == kind {
			return c.sent[i], true
		}
	}
	return domain.Envelope{}, false
}

func (c *fakeChannel) countTo(target domain.ParticipantID, kind domain.SignalKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, env := range c.sent {
		if env.TargetID == target && env.Kind == kind {
			n++
		}
	}
	return n
}

// fakeConn is a scripted connection primitive. It hands out fixed
// descriptions and records everything applied to it.
type fakeConn struct {
	mu sync.Mutex

	remoteDescs []domain.SessionDescription
	localDescs  []domain.SessionDescription
	candidates  []domain.ICECandidate
	closed      bool

	offerErr error

	onState     func(domain.ConnectionState)
	onCandidate func(domain.ICECandidate)

	offerSeq  int
	answerSeq int
}

func newFakeConn() *fakeConn { return &fakeConn{} }

func (f *fakeConn) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	if f.offerErr != nil {
		return domain.SessionDescription{}, f.offerErr
	}
	f.offerSeq++
	return domain.SessionDescription{
		Type: domain.SDPTypeOffer,
		SDP:  fmt.Sprintf("v=0\r\no=- %d 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", f.offerSeq),
	}, nil
}

func (f *fakeConn) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	f.answerSeq++
	return domain.SessionDescription{
		Type: domain.SDPTypeAnswer,
		SDP:  fmt.Sprintf("v=0\r\no=- %d 2 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", f.answerSeq),
	}, nil
}

func (f *fakeConn) SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localDescs = append(f.localDescs, desc)
	return nil
}

func (f *fakeConn) SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteDescs = append(f.remoteDescs, desc)
	return nil
}

func (f *fakeConn) AddICECandidate(ctx context.Context, cand domain.ICECandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, cand)
	return nil
}

func (f *fakeConn) OnConnectionStateChange(fn func(domain.ConnectionState)) { f.onState = fn }
func (f *fakeConn) OnICECandidate(fn func(domain.ICECandidate))             { f.onCandidate = fn }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) appliedCandidates() []domain.ICECandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ICECandidate, len(f.candidates))
	copy(out, f.candidates)
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeFactory hands out one fakeConn per NewConnection call and keeps
// them all for inspection.
type fakeFactory struct {
	mu    sync.Mutex
	conns map[domain.ParticipantID][]*fakeConn
	err   error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{conns: make(map[domain.ParticipantID][]*fakeConn)}
}

func (f *fakeFactory) NewConnection(ctx context.Context, remoteID domain.ParticipantID) (ports.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conn := newFakeConn()
	f.conns[remoteID] = append(f.conns[remoteID], conn)
	return conn, nil
}

// latest returns the most recent connection built for remoteID.
func (f *fakeFactory) latest(remoteID domain.ParticipantID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	conns := f.conns[remoteID]
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

func (f *fakeFactory) count(remoteID domain.ParticipantID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns[remoteID])
}

func offerDesc(seq int) domain.SessionDescription {
	return domain.SessionDescription{
		Type: domain.SDPTypeOffer,
		SDP:  fmt.Sprintf("v=0\r\no=remote %d 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", seq),
	}
}

func answerDesc(seq int) domain.SessionDescription {
	return domain.SessionDescription{
		Type: domain.SDPTypeAnswer,
		SDP:  fmt.Sprintf("v=0\r\no=remote %d 2 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", seq),
	}
}

func candidate(s string) domain.ICECandidate {
	return domain.ICECandidate{Candidate: s}
}
