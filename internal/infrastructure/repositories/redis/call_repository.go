package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisCallRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisCallRepository(client *redis.Client) ports.CallRepository {
	return &RedisCallRepository{
		client: client,
		prefix: "calls:call:",
	}
}

func (r *RedisCallRepository) callKey(id domain.CallID) string {
	return r.prefix + string(id)
}

func (r *RedisCallRepository) activeCallsKey() string {
	return r.prefix + "active"
}

func (r *RedisCallRepository) Create(ctx context.Context, call *domain.CallSession) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal call: %w", err)
	}

	key := r.callKey(call.ID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set call in Redis: %w", err)
	}

	if callIsActive(call) {
		if err := r.client.SAdd(ctx, r.activeCallsKey(), string(call.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add call to active set: %w", err)
		}
	}

	return nil
}

func (r *RedisCallRepository) GetByID(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	data, err := r.client.Get(ctx, r.callKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call from Redis: %w", err)
	}

	var call domain.CallSession
	if err := json.Unmarshal([]byte(data), &call); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call: %w", err)
	}

	return &call, nil
}

func (r *RedisCallRepository) Update(ctx context.Context, call *domain.CallSession) error {
	if _, err := r.GetByID(ctx, call.ID); err != nil {
		return err
	}

	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal call: %w", err)
	}

	key := r.callKey(call.ID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update call in Redis: %w", err)
	}

	activeKey := r.activeCallsKey()
	if callIsActive(call) {
		if err := r.client.SAdd(ctx, activeKey, string(call.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add call to active set: %w", err)
		}
	} else {
		if err := r.client.SRem(ctx, activeKey, string(call.ID)).Err(); err != nil {
			return fmt.Errorf("failed to remove call from active set: %w", err)
		}
	}

	return nil
}

func (r *RedisCallRepository) Delete(ctx context.Context, id domain.CallID) error {
	if err := r.client.SRem(ctx, r.activeCallsKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove call from active set: %w", err)
	}

	if err := r.client.Del(ctx, r.callKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete call from Redis: %w", err)
	}

	return nil
}

func (r *RedisCallRepository) ListActive(ctx context.Context) ([]*domain.CallSession, error) {
	ids, err := r.client.SMembers(ctx, r.activeCallsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active calls: %w", err)
	}

	var calls []*domain.CallSession
	for _, id := range ids {
		call, err := r.GetByID(ctx, domain.CallID(id))
		if err == domain.ErrCallNotFound {
			// Stale set entry, drop it.
			r.client.SRem(ctx, r.activeCallsKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	return calls, nil
}

func callIsActive(call *domain.CallSession) bool {
	switch call.Status {
	case domain.CallStatusActive, domain.CallStatusWaiting, domain.CallStatusRinging:
		return true
	}
	return false
}
