package negotiation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

// Config carries the per-call parameters of a mesh coordinator.
type Config struct {
	CallID      domain.CallID
	LocalID     domain.ParticipantID
	DisplayName string

	// MediaReady gates offer creation: a coordinator without local media
	// stays responder-only until MediaReady is signalled.
	MediaReady bool

	RetryBaseDelay   time.Duration
	MaxRetryAttempts int
}

type eventKind int

const (
	evEnvelope eventKind = iota
	evJoin
	evLeave
	evConnState
	evRetryFire
	evMediaReady
)

type event struct {
	kind      eventKind
	env       domain.Envelope
	id        domain.ParticipantID
	name      string
	connState domain.ConnectionState
	gen       uint64
}

// linkEntry pairs a live link with the retry state that outlives link
// replacement during recovery. gen guards against completions and timer
// fires that belong to a torn-down link.
type linkEntry struct {
	link  *PeerLink
	retry *RetryPolicy
	gen   uint64
}

// Coordinator owns the participant set and the one-link-per-remote
// invariant for a single call. All signaling events for the call are
// processed one at a time by Run's goroutine, in arrival order, so the
// coordinator and its links carry no locks. Independent calls run
// independent coordinators and share nothing.
type Coordinator struct {
	cfg     Config
	channel ports.SignalingChannel
	factory ports.ConnectionFactory
	logger  *zap.SugaredLogger
	metrics ports.MetricsRecorder

	events chan event

	links        map[domain.ParticipantID]*linkEntry
	participants map[domain.ParticipantID]domain.Participant
	mediaStates  map[domain.ParticipantID]domain.ParticipantMediaState

	listener func(domain.LinkEvent)

	mediaReady bool
	nextGen    uint64
}

func NewCoordinator(
	cfg Config,
	channel ports.SignalingChannel,
	factory ports.ConnectionFactory,
	logger *zap.SugaredLogger,
	metrics ports.MetricsRecorder,
) *Coordinator {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Coordinator{
		cfg:          cfg,
		channel:      channel,
		factory:      factory,
		logger:       logger,
		metrics:      metrics,
		events:       make(chan event, 256),
		links:        make(map[domain.ParticipantID]*linkEntry),
		participants: make(map[domain.ParticipantID]domain.Participant),
		mediaStates:  make(map[domain.ParticipantID]domain.ParticipantMediaState),
		mediaReady:   cfg.MediaReady,
	}
}

// OnLinkEvent registers the upward link-state listener. Must be set
// before Run starts.
func (c *Coordinator) OnLinkEvent(fn func(domain.LinkEvent)) {
	c.listener = fn
}

// Join reports a membership join observed out of band (for example from
// the call API rather than the relay broadcast).
func (c *Coordinator) Join(id domain.ParticipantID, name string) {
	c.post(event{kind: evJoin, id: id, name: name})
}

// Leave reports a membership departure.
func (c *Coordinator) Leave(id domain.ParticipantID) {
	c.post(event{kind: evLeave, id: id})
}

// HandleInbound feeds one signaling envelope into the call's event queue.
func (c *Coordinator) HandleInbound(env domain.Envelope) {
	c.post(event{kind: evEnvelope, env: env})
}

// MediaReady marks local media available and starts offers toward every
// idle peer this side should initiate to.
func (c *Coordinator) MediaReady() {
	c.post(event{kind: evMediaReady})
}

func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	default:
		// Queue full means the call is pathologically behind; dropping
		// is safer than blocking the relay reader, and the at-least-once
		// relay will redeliver signaling.
		c.logger.Warnw("event queue full, dropping event", "call_id", c.cfg.CallID, "kind", ev.kind)
	}
}

// Run drains the event queue until ctx is cancelled, then tears down
// every link.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evEnvelope:
		c.handleEnvelope(ctx, ev.env)
	case evJoin:
		c.handleJoin(ctx, ev.id, ev.name)
	case evLeave:
		c.handleLeave(ev.id)
	case evConnState:
		c.handleConnState(ev.id, ev.gen, ev.connState)
	case evRetryFire:
		c.handleRetryFire(ctx, ev.id, ev.gen)
	case evMediaReady:
		c.handleMediaReady(ctx)
	}
}

func (c *Coordinator) handleEnvelope(ctx context.Context, env domain.Envelope) {
	if env.SenderID == c.cfg.LocalID {
		return // loopback from the relay broadcast
	}
	if !env.Broadcast() && env.TargetID != c.cfg.LocalID {
		return
	}
	c.metrics.RecordSignal(env.Kind, false)

	switch env.Kind {
	case domain.KindParticipantJoined:
		p, err := env.DecodeJoin()
		if err != nil {
			c.logger.Warnw("bad join payload", "call_id", c.cfg.CallID, "sender_id", env.SenderID, "error", err)
			return
		}
		c.handleJoin(ctx, env.SenderID, p.DisplayName)

	case domain.KindParticipantLeft:
		c.handleLeave(env.SenderID)

	case domain.KindOffer:
		c.handleOffer(ctx, env)

	case domain.KindAnswer:
		c.handleAnswer(ctx, env)

	case domain.KindCandidate:
		c.handleCandidate(ctx, env)

	case domain.KindQualityChange:
		c.handleQualityChange(env)

	case domain.KindScreenShareStart, domain.KindScreenShareStop:
		c.handleScreenShare(env)

	default:
		c.logger.Warnw("dropping envelope",
			"call_id", c.cfg.CallID, "kind", env.Kind, "sender_id", env.SenderID,
			"error", domain.ErrUnknownSignalKind)
	}
}

// handleJoin is idempotent: a duplicate join for a remote that already
// has a link changes nothing.
func (c *Coordinator) handleJoin(ctx context.Context, id domain.ParticipantID, name string) {
	if id == c.cfg.LocalID {
		return
	}
	c.participants[id] = domain.Participant{ID: id, DisplayName: name}
	if _, ok := c.mediaStates[id]; !ok {
		c.mediaStates[id] = domain.NewParticipantMediaState()
	}
	if _, ok := c.links[id]; ok {
		c.logger.Debugw("duplicate join ignored", "call_id", c.cfg.CallID, "participant_id", id)
		return
	}

	entry := c.createLink(ctx, id, nil)
	if entry == nil {
		return
	}
	c.logger.Infow("participant joined",
		"call_id", c.cfg.CallID, "participant_id", id, "initiator", entry.link.IsInitiator())

	if entry.link.IsInitiator() && c.mediaReady {
		c.startOffer(ctx, entry)
	}
}

func (c *Coordinator) handleLeave(id domain.ParticipantID) {
	delete(c.participants, id)
	delete(c.mediaStates, id)
	entry, ok := c.links[id]
	if !ok {
		return
	}
	c.teardown(id, entry)
	c.logger.Infow("participant left", "call_id", c.cfg.CallID, "participant_id", id)
}

func (c *Coordinator) handleOffer(ctx context.Context, env domain.Envelope) {
	entry, ok := c.links[env.SenderID]
	if !ok {
		// First inbound offer from an unknown remote creates the link.
		if _, known := c.participants[env.SenderID]; !known {
			c.participants[env.SenderID] = domain.Participant{ID: env.SenderID}
			c.mediaStates[env.SenderID] = domain.NewParticipantMediaState()
		}
		entry = c.createLink(ctx, env.SenderID, nil)
		if entry == nil {
			return
		}
	}
	if entry.link.Seen(env) {
		c.metrics.RecordDuplicateDropped(env.Kind)
		return
	}
	desc, err := env.DecodeSession()
	if err != nil {
		c.logger.Warnw("bad offer", "call_id", c.cfg.CallID, "sender_id", env.SenderID, "error", err)
		return
	}
	if err := entry.link.HandleOffer(ctx, desc); err != nil {
		c.linkError(ctx, env.SenderID, entry, err)
	}
}

func (c *Coordinator) handleAnswer(ctx context.Context, env domain.Envelope) {
	entry, ok := c.links[env.SenderID]
	if !ok {
		c.logger.Debugw("answer for unknown link dropped",
			"call_id", c.cfg.CallID, "sender_id", env.SenderID)
		return
	}
	if entry.link.Seen(env) {
		c.metrics.RecordDuplicateDropped(env.Kind)
		return
	}
	desc, err := env.DecodeSession()
	if err != nil {
		c.logger.Warnw("bad answer", "call_id", c.cfg.CallID, "sender_id", env.SenderID, "error", err)
		return
	}
	if err := entry.link.HandleAnswer(ctx, desc); err != nil {
		c.linkError(ctx, env.SenderID, entry, err)
	}
}

func (c *Coordinator) handleCandidate(ctx context.Context, env domain.Envelope) {
	entry, ok := c.links[env.SenderID]
	if !ok {
		// Links are created by joins and first offers only; a candidate
		// without a link is stale.
		c.logger.Debugw("candidate for unknown link dropped",
			"call_id", c.cfg.CallID, "sender_id", env.SenderID)
		return
	}
	if entry.link.Seen(env) {
		c.metrics.RecordDuplicateDropped(env.Kind)
		return
	}
	cand, err := env.DecodeCandidate()
	if err != nil {
		c.logger.Warnw("bad candidate", "call_id", c.cfg.CallID, "sender_id", env.SenderID, "error", err)
		return
	}
	if err := entry.link.HandleCandidate(ctx, cand); err != nil {
		c.linkError(ctx, env.SenderID, entry, err)
	}
}

func (c *Coordinator) handleQualityChange(env domain.Envelope) {
	p, err := env.DecodeQuality()
	if err != nil || !p.Quality.Valid() {
		c.logger.Warnw("bad quality change", "call_id", c.cfg.CallID, "sender_id", env.SenderID, "error", err)
		return
	}
	st, ok := c.mediaStates[env.SenderID]
	if !ok {
		return
	}
	st.Quality = p.Quality
	c.mediaStates[env.SenderID] = st
	c.logger.Infow("participant changed quality",
		"call_id", c.cfg.CallID, "participant_id", env.SenderID, "quality", p.Quality)
}

func (c *Coordinator) handleScreenShare(env domain.Envelope) {
	st, ok := c.mediaStates[env.SenderID]
	if !ok {
		return
	}
	next, changed := domain.NextScreenShare(st.ScreenShare, env.Kind)
	if !changed {
		return
	}
	st.ScreenShare = next
	c.mediaStates[env.SenderID] = st
	c.logger.Infow("participant screen share changed",
		"call_id", c.cfg.CallID, "participant_id", env.SenderID, "state", next)
}

func (c *Coordinator) handleMediaReady(ctx context.Context) {
	if c.mediaReady {
		return
	}
	c.mediaReady = true
	for _, entry := range c.links {
		if entry.link.IsInitiator() && entry.link.State() == domain.NegotiationIdle {
			c.startOffer(ctx, entry)
		}
	}
}

// handleConnState applies a connection-state transition reported by the
// primitive. Events carrying a stale generation belong to a torn-down
// link and are discarded, never applied to its replacement.
func (c *Coordinator) handleConnState(id domain.ParticipantID, gen uint64, state domain.ConnectionState) {
	entry, ok := c.links[id]
	if !ok || entry.gen != gen {
		return
	}
	entry.link.SetConnectionState(state)
	c.metrics.RecordLinkState(c.cfg.CallID, state)
	c.notify(domain.LinkEvent{CallID: c.cfg.CallID, RemoteID: id, State: state})

	switch state {
	case domain.ConnectionConnected:
		entry.retry.Reset()
		c.logger.Infow("link connected", "call_id", c.cfg.CallID, "participant_id", id)
	case domain.ConnectionFailed:
		c.recoverLink(id, entry)
	}
}

// linkError routes a negotiation failure: desync triggers recovery,
// anything else is logged and the link left as-is.
func (c *Coordinator) linkError(ctx context.Context, id domain.ParticipantID, entry *linkEntry, err error) {
	switch {
	case errors.Is(err, domain.ErrNegotiationDesync):
		c.logger.Warnw("negotiation desync, recovering",
			"call_id", c.cfg.CallID, "participant_id", id, "error", err)
		c.recoverLink(id, entry)
	case errors.Is(err, domain.ErrLinkClosed):
		// Completion for a link already torn down.
	default:
		c.logger.Errorw("negotiation error",
			"call_id", c.cfg.CallID, "participant_id", id, "error", err)
	}
}

// recoverLink arms one backoff-delayed reconnection attempt, or abandons
// the peer when the budget is spent. Only this one peer is affected
// either way.
func (c *Coordinator) recoverLink(id domain.ParticipantID, entry *linkEntry) {
	if entry.retry.Exhausted() {
		c.logger.Warnw("link abandoned after max retries",
			"call_id", c.cfg.CallID, "participant_id", id, "attempts", entry.retry.Attempts())
		c.metrics.RecordLinkAbandoned(c.cfg.CallID)
		c.teardown(id, entry)
		c.notify(domain.LinkEvent{
			CallID: c.cfg.CallID, RemoteID: id,
			State: domain.ConnectionFailed, Terminal: true,
		})
		return
	}

	delay := entry.retry.NextDelay()
	gen := entry.gen
	c.metrics.RecordRetryAttempt(c.cfg.CallID)
	c.logger.Infow("scheduling link recovery",
		"call_id", c.cfg.CallID, "participant_id", id,
		"attempt", entry.retry.Attempts(), "delay", delay)
	entry.retry.Schedule(delay, func() {
		c.post(event{kind: evRetryFire, id: id, gen: gen})
	})
}

// handleRetryFire replaces the failed link with a fresh one. The old
// link, its candidate buffer and dedup cache are discarded; the retry
// counter carries over. Only the tie-break initiator re-offers, the
// responder waits for the fresh offer.
func (c *Coordinator) handleRetryFire(ctx context.Context, id domain.ParticipantID, gen uint64) {
	entry, ok := c.links[id]
	if !ok || entry.gen != gen {
		return // superseded by leave or a newer recovery
	}
	entry.link.Close()

	fresh := c.createLink(ctx, id, entry.retry)
	if fresh == nil {
		return
	}
	c.logger.Infow("recovering link",
		"call_id", c.cfg.CallID, "participant_id", id, "attempt", fresh.retry.Attempts())

	if fresh.link.IsInitiator() && c.mediaReady {
		c.startOffer(ctx, fresh)
	}
}

// createLink builds a fresh link for id, tearing down any live one first
// so two connection primitives for the same remote never coexist. retry
// is carried over during recovery, nil allocates a fresh policy.
func (c *Coordinator) createLink(ctx context.Context, id domain.ParticipantID, retry *RetryPolicy) *linkEntry {
	if old, ok := c.links[id]; ok {
		c.teardown(id, old)
		if retry == nil {
			retry = old.retry
		}
	}
	if retry == nil {
		retry = NewRetryPolicy(c.cfg.RetryBaseDelay, c.cfg.MaxRetryAttempts)
	}

	pc, err := c.factory.NewConnection(ctx, id)
	if err != nil {
		c.logger.Errorw("failed to create peer connection",
			"call_id", c.cfg.CallID, "participant_id", id, "error", err)
		c.notify(domain.LinkEvent{
			CallID: c.cfg.CallID, RemoteID: id,
			State: domain.ConnectionFailed, Terminal: true,
		})
		return nil
	}

	c.nextGen++
	gen := c.nextGen
	entry := &linkEntry{
		link:  NewPeerLink(c.cfg.CallID, c.cfg.LocalID, id, pc, c.channel, c.logger, c.metrics),
		retry: retry,
		gen:   gen,
	}
	c.links[id] = entry

	pc.OnConnectionStateChange(func(state domain.ConnectionState) {
		c.post(event{kind: evConnState, id: id, gen: gen, connState: state})
	})
	return entry
}

func (c *Coordinator) startOffer(ctx context.Context, entry *linkEntry) {
	if err := entry.link.StartOffer(ctx); err != nil {
		c.logger.Warnw("offer rejected",
			"call_id", c.cfg.CallID, "participant_id", entry.link.RemoteID(), "error", err)
	}
}

// teardown closes a link and cancels its pending recovery. The retry
// counter is released with the entry.
func (c *Coordinator) teardown(id domain.ParticipantID, entry *linkEntry) {
	entry.retry.Cancel()
	entry.link.Close()
	delete(c.links, id)
}

func (c *Coordinator) notify(ev domain.LinkEvent) {
	if c.listener != nil {
		c.listener(ev)
	}
}

func (c *Coordinator) shutdown() {
	for id, entry := range c.links {
		c.teardown(id, entry)
	}
	c.logger.Infow("coordinator stopped", "call_id", c.cfg.CallID)
}

// Links reports the current connection state per remote. Only safe from
// the event goroutine; tests drive the coordinator synchronously.
func (c *Coordinator) Links() map[domain.ParticipantID]domain.ConnectionState {
	out := make(map[domain.ParticipantID]domain.ConnectionState, len(c.links))
	for id, entry := range c.links {
		out[id] = entry.link.ConnectionState()
	}
	return out
}
