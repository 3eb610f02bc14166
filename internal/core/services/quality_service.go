package services

import (
	"context"
	"fmt"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
)

type qualityService struct {
	profiles    map[domain.QualityLevel]domain.MediaConstraints
	metricsRepo ports.QualityMetricsRepository
}

func NewQualityService(metricsRepo ports.QualityMetricsRepository) ports.QualityService {
	return &qualityService{
		metricsRepo: metricsRepo,
		profiles: map[domain.QualityLevel]domain.MediaConstraints{
			domain.QualityLow: {
				Video: domain.VideoConstraints{Width: 640, Height: 360, FrameRate: 15, BitrateKbps: 300},
				Audio: domain.AudioConstraints{BitrateKbps: 32},
			},
			domain.QualityMedium: {
				Video: domain.VideoConstraints{Width: 1280, Height: 720, FrameRate: 30, BitrateKbps: 1000},
				Audio: domain.AudioConstraints{BitrateKbps: 64},
			},
			domain.QualityHigh: {
				Video: domain.VideoConstraints{Width: 1920, Height: 1080, FrameRate: 30, BitrateKbps: 2500},
				Audio: domain.AudioConstraints{BitrateKbps: 128},
			},
			domain.QualityUltra: {
				Video: domain.VideoConstraints{Width: 3840, Height: 2160, FrameRate: 30, BitrateKbps: 8000},
				Audio: domain.AudioConstraints{BitrateKbps: 256},
			},
		},
	}
}

// OptimalQuality picks the highest level the measured link can sustain.
// A loaded CPU caps the level regardless of available bandwidth.
func (qs *qualityService) OptimalQuality(bandwidthKbps int, cpuUsagePercent float64) domain.QualityLevel {
	switch {
	case bandwidthKbps < 500 || cpuUsagePercent > 80:
		return domain.QualityLow
	case bandwidthKbps < 2000 || cpuUsagePercent > 60:
		return domain.QualityMedium
	case bandwidthKbps < 5000:
		return domain.QualityHigh
	default:
		return domain.QualityUltra
	}
}

func (qs *qualityService) ConstraintsFor(level domain.QualityLevel) domain.MediaConstraints {
	if constraints, ok := qs.profiles[level]; ok {
		return constraints
	}
	return qs.profiles[domain.QualityMedium]
}

func (qs *qualityService) RecordReport(ctx context.Context, report *domain.CallQualityReport) error {
	if !report.VideoQuality.Valid() || !report.AudioQuality.Valid() {
		return fmt.Errorf("invalid quality level in report for call %s", report.CallID)
	}
	if qs.metricsRepo == nil {
		return nil
	}
	if err := qs.metricsRepo.Save(ctx, report); err != nil {
		return fmt.Errorf("failed to save quality report: %w", err)
	}
	return nil
}
