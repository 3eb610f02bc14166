package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	qualityHistoryLen = 1000
	qualityHistoryTTL = 24 * time.Hour
)

type RedisQualityRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisQualityRepository(client *redis.Client) ports.QualityMetricsRepository {
	return &RedisQualityRepository{
		client: client,
		prefix: "calls:quality:",
	}
}

func (r *RedisQualityRepository) reportsKey(callID domain.CallID) string {
	return r.prefix + string(callID)
}

func (r *RedisQualityRepository) Save(ctx context.Context, report *domain.CallQualityReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal quality report: %w", err)
	}

	key := r.reportsKey(report.CallID)
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -qualityHistoryLen, -1)
	pipe.Expire(ctx, key, qualityHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save quality report: %w", err)
	}

	return nil
}

func (r *RedisQualityRepository) ListByCall(ctx context.Context, callID domain.CallID) ([]*domain.CallQualityReport, error) {
	entries, err := r.client.LRange(ctx, r.reportsKey(callID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list quality reports: %w", err)
	}

	reports := make([]*domain.CallQualityReport, 0, len(entries))
	for _, entry := range entries {
		var report domain.CallQualityReport
		if err := json.Unmarshal([]byte(entry), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quality report: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, nil
}
