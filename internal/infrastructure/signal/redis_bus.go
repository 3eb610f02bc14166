package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const busChannel = "calls:signal"

// busMessage wraps an envelope with the publishing instance so each
// relay can skip its own messages.
type busMessage struct {
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Envelope   domain.Envelope `json:"envelope"`
}

// RedisBus fans signaling envelopes out across relay instances. When a
// call's participants are split over several relays, envelopes that
// cannot be delivered locally are published here and every other
// instance delivers them to the members it hosts.
type RedisBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

func NewRedisBus(client *redis.Client, instanceID string, logger *zap.Logger) *RedisBus {
	return &RedisBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger.Sugar(),
	}
}

// Publish sends an envelope to every other relay instance.
func (b *RedisBus) Publish(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(busMessage{
		InstanceID: b.instanceID,
		Timestamp:  time.Now(),
		Envelope:   env,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal bus message: %w", err)
	}

	if err := b.client.Publish(ctx, busChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}

	b.logger.Debugw("published envelope to bus",
		"type", env.Kind,
		"call_id", env.CallID,
		"target_id", env.TargetID,
	)

	return nil
}

// Subscribe delivers envelopes published by other instances to handler
// until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(domain.Envelope)) error {
	if b.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	b.pubsub = b.client.Subscribe(ctx, busChannel)
	defer b.pubsub.Close()

	ch := b.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var bm busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				b.logger.Warnw("failed to unmarshal bus message",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			// Skip envelopes this instance published.
			if bm.InstanceID == b.instanceID {
				continue
			}

			handler(bm.Envelope)
		}
	}
}

// Close closes the bus subscription.
func (b *RedisBus) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
