package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/backup"

	"go.uber.org/zap"
)

// Scheduler snapshots call history and quality reports on a timer.
type Scheduler struct {
	backupService *backup.BackupService
	callRepo      ports.CallRepository
	qualityRepo   ports.QualityMetricsRepository
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

// Config contains scheduler configuration
type Config struct {
	Interval      time.Duration
	RetentionDays int
}

// NewScheduler creates a new backup scheduler
func NewScheduler(
	backupService *backup.BackupService,
	callRepo ports.CallRepository,
	qualityRepo ports.QualityMetricsRepository,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		backupService: backupService,
		callRepo:      callRepo,
		qualityRepo:   qualityRepo,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start runs the scheduler until Stop or ctx cancellation. An initial
// backup runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the backup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runBackup(ctx context.Context) {
	s.logger.Info("starting scheduled backup")

	backupData, err := s.collectData(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect backup data", "error", err)
		return
	}

	backupName, err := s.backupService.CreateBackup(ctx, backupData)
	if err != nil {
		s.logger.Errorw("failed to create backup", "error", err)
		return
	}

	s.logger.Infow("backup created successfully", "backup_name", backupName)

	if err := s.cleanupOldBackups(ctx); err != nil {
		s.logger.Warnw("failed to cleanup old backups", "error", err)
	}
}

func (s *Scheduler) collectData(ctx context.Context) (*backup.BackupData, error) {
	data := &backup.BackupData{
		Calls:    make(map[string]interface{}),
		Quality:  make(map[string][]interface{}),
		Metadata: make(map[string]interface{}),
	}

	calls, err := s.callRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}

	reportCount := 0
	for _, call := range calls {
		data.Calls[string(call.ID)] = call

		reports, err := s.qualityRepo.ListByCall(ctx, call.ID)
		if err != nil {
			s.logger.Warnw("failed to list quality reports for call",
				"call_id", call.ID, "error", err)
			continue
		}
		for _, report := range reports {
			data.Quality[string(call.ID)] = append(data.Quality[string(call.ID)], report)
			reportCount++
		}
	}

	data.Metadata["call_count"] = len(data.Calls)
	data.Metadata["quality_report_count"] = reportCount
	data.Metadata["backup_type"] = "scheduled"

	return data, nil
}

// cleanupOldBackups removes backups older than retention period
func (s *Scheduler) cleanupOldBackups(ctx context.Context) error {
	backups, err := s.backupService.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	cutoffTime := time.Now().AddDate(0, 0, -s.retentionDays)

	for _, backupName := range backups {
		// Backup names look like backup-20060102-150405.json
		if len(backupName) < 22 {
			continue
		}

		timestampStr := backupName[7:22]
		timestamp, err := time.Parse("20060102-150405", timestampStr)
		if err != nil {
			s.logger.Warnw("failed to parse backup timestamp", "backup_name", backupName, "error", err)
			continue
		}

		if timestamp.Before(cutoffTime) {
			if err := s.backupService.DeleteBackup(ctx, backupName); err != nil {
				s.logger.Warnw("failed to delete old backup", "backup_name", backupName, "error", err)
				continue
			}
			s.logger.Infow("deleted old backup", "backup_name", backupName, "age", time.Since(timestamp))
		}
	}

	return nil
}
