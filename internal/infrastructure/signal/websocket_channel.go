package signal

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketChannel is the client side of the relay: it dials the
// signaling server for one call and exchanges envelopes over a single
// websocket connection.
type WebSocketChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	callID        domain.CallID
	participantID domain.ParticipantID

	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}

	logger *zap.SugaredLogger
}

// DialOptions configure a relay connection attempt.
type DialOptions struct {
	// ServerURL is the relay base URL, e.g. "ws://localhost:8081/ws".
	ServerURL     string
	CallID        domain.CallID
	ParticipantID domain.ParticipantID
	DisplayName   string

	// Retry controls dial retries. Zero value disables them.
	Retry retry.Config

	WriteTimeout time.Duration
}

// Dial connects to the signaling relay, retrying per opts.Retry.
func Dial(ctx context.Context, opts DialOptions, logger *zap.Logger) (*WebSocketChannel, error) {
	u, err := url.Parse(opts.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("call_id", string(opts.CallID))
	q.Set("participant_id", string(opts.ParticipantID))
	if opts.DisplayName != "" {
		q.Set("display_name", opts.DisplayName)
	}
	u.RawQuery = q.Encode()

	conn, err := retry.RetryWithResult(ctx, opts.Retry, func() (*websocket.Conn, error) {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", u.Host, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	return &WebSocketChannel{
		conn:          conn,
		callID:        opts.CallID,
		participantID: opts.ParticipantID,
		writeTimeout:  writeTimeout,
		closed:        make(chan struct{}),
		logger:        logger.Sugar(),
	}, nil
}

var _ ports.SignalingChannel = (*WebSocketChannel)(nil)

// Send writes one envelope to the relay. The sender identity is filled
// in; the relay enforces it anyway.
func (ch *WebSocketChannel) Send(ctx context.Context, env domain.Envelope) error {
	select {
	case <-ch.closed:
		return fmt.Errorf("signaling channel closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	env.CallID = ch.callID
	env.SenderID = ch.participantID

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	ch.conn.SetWriteDeadline(time.Now().Add(ch.writeTimeout))
	if err := ch.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Kind, err)
	}
	return nil
}

// Pump reads envelopes until the connection drops or ctx is cancelled,
// delivering each to handler. It returns the read error that ended the
// loop, or nil on clean close.
func (ch *WebSocketChannel) Pump(ctx context.Context, handler ports.EnvelopeHandler) error {
	go func() {
		select {
		case <-ctx.Done():
			ch.Close()
		case <-ch.closed:
		}
	}()

	for {
		var env domain.Envelope
		if err := ch.conn.ReadJSON(&env); err != nil {
			select {
			case <-ch.closed:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("signaling read: %w", err)
			}
			return nil
		}
		if !env.Kind.Known() {
			ch.logger.Debugw("ignoring envelope of unknown kind", "type", env.Kind)
			continue
		}
		handler.HandleInbound(env)
	}
}

func (ch *WebSocketChannel) Close() error {
	var err error
	ch.closeOnce.Do(func() {
		close(ch.closed)
		ch.writeMu.Lock()
		ch.conn.SetWriteDeadline(time.Now().Add(time.Second))
		ch.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ch.writeMu.Unlock()
		err = ch.conn.Close()
	})
	return err
}
