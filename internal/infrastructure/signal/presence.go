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

const presenceTTL = 90 * time.Second

// PresenceEntry describes a participant connected somewhere in the cluster.
type PresenceEntry struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	CallID        domain.CallID        `json:"call_id"`
	DisplayName   string               `json:"display_name"`
	InstanceID    string               `json:"instance_id"`
	ConnectedAt   time.Time            `json:"connected_at"`
}

// Presence is a Redis-backed registry of which relay instance holds each
// participant's connection. Entries expire unless refreshed, so a crashed
// instance's participants age out on their own.
type Presence struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	prefix     string
}

func NewPresence(client *redis.Client, instanceID string, logger *zap.Logger) *Presence {
	return &Presence{
		client:     client,
		instanceID: instanceID,
		logger:     logger.Sugar().Named("presence"),
		prefix:     "calls:presence:",
	}
}

func (p *Presence) key(callID domain.CallID, participantID domain.ParticipantID) string {
	return fmt.Sprintf("%s%s:%s", p.prefix, callID, participantID)
}

// Register publishes the participant's location. Overwrites a stale entry
// from another instance, which is the desired behavior on reconnect.
func (p *Presence) Register(ctx context.Context, callID domain.CallID, participantID domain.ParticipantID, displayName string) error {
	entry := PresenceEntry{
		ParticipantID: participantID,
		CallID:        callID,
		DisplayName:   displayName,
		InstanceID:    p.instanceID,
		ConnectedAt:   time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	return p.client.Set(ctx, p.key(callID, participantID), data, presenceTTL).Err()
}

// Refresh extends the entry's TTL. Called from the connection ping loop.
func (p *Presence) Refresh(ctx context.Context, callID domain.CallID, participantID domain.ParticipantID) error {
	ok, err := p.client.Expire(ctx, p.key(callID, participantID), presenceTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		// Entry expired between refreshes, re-register without display name.
		return p.Register(ctx, callID, participantID, "")
	}
	return nil
}

// Unregister removes the entry if this instance still owns it. A newer
// registration from another instance is left alone.
func (p *Presence) Unregister(ctx context.Context, callID domain.CallID, participantID domain.ParticipantID) error {
	key := p.key(callID, participantID)

	data, err := p.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	var entry PresenceEntry
	if err := json.Unmarshal(data, &entry); err == nil && entry.InstanceID != p.instanceID {
		return nil
	}

	return p.client.Del(ctx, key).Err()
}

// Participants lists everyone connected to the call across all instances.
func (p *Presence) Participants(ctx context.Context, callID domain.CallID) ([]PresenceEntry, error) {
	pattern := fmt.Sprintf("%s%s:*", p.prefix, callID)

	var entries []PresenceEntry
	iter := p.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		data, err := p.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var entry PresenceEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			p.logger.Warnw("skipping malformed presence entry", "key", iter.Val(), "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence entries: %w", err)
	}

	return entries, nil
}

// IsConnected reports whether the participant is connected anywhere.
func (p *Presence) IsConnected(ctx context.Context, callID domain.CallID, participantID domain.ParticipantID) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(callID, participantID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
