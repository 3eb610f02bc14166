package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// client is one registered websocket connection.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	callID        domain.CallID
	participantID domain.ParticipantID

	limiter *rate.Limiter
}

func (c *client) writeJSON(v interface{}, deadline time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(deadline))
	return c.conn.WriteJSON(v)
}

// Server relays signaling envelopes between the participants of a call.
// It never inspects SDP beyond shape validation; negotiation semantics
// live entirely in the peers.
type Server struct {
	callService ports.CallService
	metrics     ports.MetricsRecorder
	bus         *RedisBus
	presence    *Presence

	rooms map[domain.CallID]map[domain.ParticipantID]*client
	mu    sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	msgRate  rate.Limit
	msgBurst int

	logger *zap.SugaredLogger
}

func NewServer(callService ports.CallService, metrics ports.MetricsRecorder, logger *zap.Logger) *Server {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Server{
		callService:  callService,
		metrics:      metrics,
		rooms:        make(map[domain.CallID]map[domain.ParticipantID]*client),
		pingInterval: 30 * time.Second, // Default ping interval
		pongTimeout:  60 * time.Second, // Default pong timeout
		readTimeout:  60 * time.Second, // Default read timeout
		writeTimeout: 10 * time.Second, // Default write timeout
		msgRate:      rate.Limit(50),   // Signaling is bursty but light
		msgBurst:     100,
		logger:       logger.Sugar(),
	}
}

// SetPingInterval sets ping interval for WebSocket connections
func (s *Server) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetPongTimeout sets pong timeout for WebSocket connections
func (s *Server) SetPongTimeout(timeout time.Duration) {
	s.pongTimeout = timeout
}

// SetMessageRate sets the per-connection inbound message rate limit.
func (s *Server) SetMessageRate(perSecond float64, burst int) {
	s.msgRate = rate.Limit(perSecond)
	s.msgBurst = burst
}

// SetBus attaches a cross-instance bus. Envelopes for participants not
// connected to this relay are forwarded through it.
func (s *Server) SetBus(bus *RedisBus) {
	s.bus = bus
}

// SetPresence attaches the cluster presence registry. Connections are
// announced on register and withdrawn on disconnect.
func (s *Server) SetPresence(presence *Presence) {
	s.presence = presence
}

// RunBus subscribes to the cross-instance bus and delivers remote
// envelopes to locally connected participants. Blocks until ctx ends.
func (s *Server) RunBus(ctx context.Context) error {
	if s.bus == nil {
		return fmt.Errorf("no bus configured")
	}
	return s.bus.Subscribe(ctx, func(env domain.Envelope) {
		if env.Broadcast() {
			s.broadcastLocal(env)
			return
		}
		s.mu.RLock()
		c, exists := s.rooms[env.CallID][env.TargetID]
		s.mu.RUnlock()
		if !exists {
			return
		}
		if err := c.writeJSON(env, s.writeTimeout); err != nil {
			s.logger.Infow("failed to deliver bus envelope",
				"call_id", env.CallID, "to", env.TargetID, "type", env.Kind, "error", err)
			return
		}
		s.metrics.RecordSignal(env.Kind, true)
	})
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	callID := domain.CallID(r.URL.Query().Get("call_id"))
	participantID := domain.ParticipantID(r.URL.Query().Get("participant_id"))
	displayName := r.URL.Query().Get("display_name")

	if err := validation.ValidateCallID(string(callID)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateParticipantID(string(participantID)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateDisplayName(displayName); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{
		conn:          conn,
		callID:        callID,
		participantID: participantID,
		limiter:       rate.NewLimiter(s.msgRate, s.msgBurst),
	}

	existing := s.register(c)
	if existing != nil {
		// Reconnect: drop the stale connection, keep the room entry.
		existing.conn.Close()
		s.logger.Infow("closing old connection for reconnecting participant",
			"call_id", callID, "participant_id", participantID)
	}

	s.logger.Infow("participant connected",
		"call_id", callID, "participant_id", participantID, "reconnect", existing != nil)

	ctx := r.Context()
	if s.callService != nil && existing == nil {
		if err := s.callService.JoinCall(ctx, callID, domain.Participant{
			ID:          participantID,
			DisplayName: displayName,
		}); err != nil {
			s.logger.Warnw("failed to record join",
				"call_id", callID, "participant_id", participantID, "error", err)
		}
	}

	if s.presence != nil {
		if err := s.presence.Register(ctx, callID, participantID, displayName); err != nil {
			s.logger.Warnw("failed to register presence",
				"call_id", callID, "participant_id", participantID, "error", err)
		}
	}

	// The newcomer learns the current roster one join envelope per
	// member; the room learns about the newcomer by broadcast.
	s.sendRoster(c)
	s.broadcast(domain.NewJoinEnvelope(callID, participantID, displayName))

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan domain.Envelope, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var env domain.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messageChan <- env
		}
	}()

	for {
		select {
		case env := <-messageChan:
			if !c.limiter.Allow() {
				s.logger.Warnw("rate limit exceeded, dropping message",
					"call_id", callID, "participant_id", participantID, "type", env.Kind)
				continue
			}
			if err := s.route(c, env); err != nil {
				s.logger.Infow("error handling message from participant",
					"call_id", callID, "participant_id", participantID, "error", err)
				s.sendError(c, err.Error())
			}

		case <-pingTicker.C:
			if s.presence != nil {
				if err := s.presence.Refresh(ctx, callID, participantID); err != nil {
					s.logger.Warnw("failed to refresh presence",
						"call_id", callID, "participant_id", participantID, "error", err)
				}
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping",
					"call_id", callID, "participant_id", participantID, "error", err)
				s.disconnect(c)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message from participant",
					"call_id", callID, "participant_id", participantID, "error", err)
			}
			s.disconnect(c)
			return
		}
	}
}

// register adds c to its room and returns the connection it displaced,
// if the participant was already registered.
func (s *Server) register(c *client) *client {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[c.callID]
	if !ok {
		room = make(map[domain.ParticipantID]*client)
		s.rooms[c.callID] = room
	}
	existing := room[c.participantID]
	room[c.participantID] = c
	return existing
}

func (s *Server) disconnect(c *client) {
	s.mu.Lock()
	room, ok := s.rooms[c.callID]
	if ok {
		// A reconnect may have replaced the entry already.
		if room[c.participantID] == c {
			delete(room, c.participantID)
			if len(room) == 0 {
				delete(s.rooms, c.callID)
			}
		} else {
			ok = false
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	if s.presence != nil {
		if err := s.presence.Unregister(context.Background(), c.callID, c.participantID); err != nil {
			s.logger.Warnw("failed to unregister presence",
				"call_id", c.callID, "participant_id", c.participantID, "error", err)
		}
	}

	if s.callService != nil {
		if err := s.callService.LeaveCall(context.Background(), c.callID, c.participantID); err != nil {
			s.logger.Infow("error recording leave",
				"call_id", c.callID, "participant_id", c.participantID, "error", err)
		}
	}

	s.broadcast(domain.NewLeaveEnvelope(c.callID, c.participantID))
	s.logger.Infow("participant disconnected",
		"call_id", c.callID, "participant_id", c.participantID)
}

// route validates an inbound envelope and forwards it. The relay
// overwrites the sender and call fields with the registered identity,
// so a participant cannot speak for anybody else.
func (s *Server) route(c *client, env domain.Envelope) error {
	if env.Kind == "" {
		return fmt.Errorf("message type is required")
	}
	if !env.Kind.Known() {
		return fmt.Errorf("unknown message type: %s", env.Kind)
	}

	env.SenderID = c.participantID
	env.CallID = c.callID

	if env.TargetID == c.participantID {
		return fmt.Errorf("message targets its own sender")
	}

	switch env.Kind {
	case domain.KindOffer, domain.KindAnswer:
		desc, err := env.DecodeSession()
		if err != nil {
			return err
		}
		if err := validation.ValidateSDP(desc.SDP); err != nil {
			return fmt.Errorf("invalid SDP in %s: %w", env.Kind, err)
		}
		if env.Broadcast() {
			return fmt.Errorf("%s requires a target_id", env.Kind)
		}
	case domain.KindCandidate:
		if _, err := env.DecodeCandidate(); err != nil {
			return err
		}
		if env.Broadcast() {
			return fmt.Errorf("candidate requires a target_id")
		}
	}

	s.metrics.RecordSignal(env.Kind, false)

	if env.Broadcast() {
		s.broadcast(env)
		return nil
	}
	return s.sendTo(c.callID, env.TargetID, env)
}

// sendRoster delivers one participant-joined envelope per existing room
// member to the newcomer.
func (s *Server) sendRoster(c *client) {
	s.mu.RLock()
	room := s.rooms[c.callID]
	members := make([]*client, 0, len(room))
	for _, member := range room {
		if member.participantID != c.participantID {
			members = append(members, member)
		}
	}
	s.mu.RUnlock()

	for _, member := range members {
		env := domain.NewJoinEnvelope(c.callID, member.participantID, "")
		if err := c.writeJSON(env, s.writeTimeout); err != nil {
			s.logger.Infow("failed to send roster entry",
				"call_id", c.callID, "participant_id", c.participantID, "error", err)
			return
		}
		s.metrics.RecordSignal(env.Kind, true)
	}
}

func (s *Server) broadcast(env domain.Envelope) {
	s.broadcastLocal(env)

	if s.bus != nil {
		if err := s.bus.Publish(context.Background(), env); err != nil {
			s.logger.Warnw("failed to publish broadcast to bus",
				"call_id", env.CallID, "type", env.Kind, "error", err)
		}
	}
}

// broadcastLocal delivers env to every local room member except its
// sender.
func (s *Server) broadcastLocal(env domain.Envelope) {
	s.mu.RLock()
	room := s.rooms[env.CallID]
	targets := make([]*client, 0, len(room))
	for _, member := range room {
		if member.participantID != env.SenderID {
			targets = append(targets, member)
		}
	}
	s.mu.RUnlock()

	for _, target := range targets {
		if err := target.writeJSON(env, s.writeTimeout); err != nil {
			s.logger.Infow("failed to deliver broadcast",
				"call_id", env.CallID, "to", target.participantID, "type", env.Kind, "error", err)
			continue
		}
		s.metrics.RecordSignal(env.Kind, true)
	}
}

func (s *Server) sendTo(callID domain.CallID, target domain.ParticipantID, env domain.Envelope) error {
	s.mu.RLock()
	c, exists := s.rooms[callID][target]
	s.mu.RUnlock()

	if !exists {
		// The target may be connected to another relay instance.
		if s.bus != nil {
			return s.bus.Publish(context.Background(), env)
		}
		return fmt.Errorf("participant %s not connected", target)
	}
	if err := c.writeJSON(env, s.writeTimeout); err != nil {
		return fmt.Errorf("failed to send to participant %s: %w", target, err)
	}
	s.metrics.RecordSignal(env.Kind, true)
	return nil
}

func (s *Server) sendError(c *client, message string) {
	errorMsg := map[string]interface{}{
		"type":    "error",
		"message": message,
	}
	c.writeJSON(errorMsg, s.writeTimeout)
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	roomCount := len(s.rooms)
	connectionCount := 0
	for _, room := range s.rooms {
		connectionCount += len(room)
	}
	s.mu.RUnlock()

	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"calls":       roomCount,
		"connections": connectionCount,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ConnectedParticipants returns the participants registered in a call.
func (s *Server) ConnectedParticipants(callID domain.CallID) []domain.ParticipantID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.rooms[callID]
	participants := make([]domain.ParticipantID, 0, len(room))
	for id := range room {
		participants = append(participants, id)
	}
	return participants
}

func (s *Server) IsConnected(callID domain.CallID, participantID domain.ParticipantID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.rooms[callID][participantID]
	return exists
}
