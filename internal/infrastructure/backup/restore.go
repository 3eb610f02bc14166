package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/backup"

	"go.uber.org/zap"
)

// RestoreService loads a backup snapshot back into the repositories.
type RestoreService struct {
	backupService *backup.BackupService
	callRepo      ports.CallRepository
	qualityRepo   ports.QualityMetricsRepository
	logger        *zap.SugaredLogger
}

// NewRestoreService creates a new restore service
func NewRestoreService(
	backupService *backup.BackupService,
	callRepo ports.CallRepository,
	qualityRepo ports.QualityMetricsRepository,
	logger *zap.SugaredLogger,
) *RestoreService {
	return &RestoreService{
		backupService: backupService,
		callRepo:      callRepo,
		qualityRepo:   qualityRepo,
		logger:        logger,
	}
}

// RestoreOptions contains restore options
type RestoreOptions struct {
	OverwriteExisting bool
	RestoreCalls      bool
	RestoreQuality    bool
}

// DefaultRestoreOptions returns default restore options
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		OverwriteExisting: false,
		RestoreCalls:      true,
		RestoreQuality:    true,
	}
}

// RestoreFromBackup restores data from a specific backup
func (rs *RestoreService) RestoreFromBackup(ctx context.Context, backupName string, options RestoreOptions) error {
	rs.logger.Infow("starting restore", "backup_name", backupName)

	backupData, err := rs.backupService.RestoreBackup(ctx, backupName)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	if backupData.Version == "" {
		return fmt.Errorf("invalid backup: missing version")
	}

	if err := rs.restoreCalls(ctx, backupData.Calls, options); err != nil {
		return fmt.Errorf("failed to restore calls: %w", err)
	}

	if err := rs.restoreQuality(ctx, backupData.Quality, options); err != nil {
		return fmt.Errorf("failed to restore quality reports: %w", err)
	}

	rs.logger.Infow("restore completed successfully", "backup_name", backupName)
	return nil
}

func (rs *RestoreService) restoreCalls(ctx context.Context, calls map[string]interface{}, options RestoreOptions) error {
	if !options.RestoreCalls {
		return nil
	}

	for callIDStr, callData := range calls {
		callID := domain.CallID(callIDStr)

		existing, err := rs.callRepo.GetByID(ctx, callID)
		if err == nil && existing != nil && !options.OverwriteExisting {
			rs.logger.Debugw("skipping existing call", "call_id", callID)
			continue
		}

		callJSON, err := json.Marshal(callData)
		if err != nil {
			return fmt.Errorf("failed to marshal call: %w", err)
		}

		var call domain.CallSession
		if err := json.Unmarshal(callJSON, &call); err != nil {
			return fmt.Errorf("failed to unmarshal call: %w", err)
		}

		if existing == nil {
			if err := rs.callRepo.Create(ctx, &call); err != nil {
				return fmt.Errorf("failed to create call: %w", err)
			}
		} else {
			if err := rs.callRepo.Update(ctx, &call); err != nil {
				return fmt.Errorf("failed to update call: %w", err)
			}
		}

		rs.logger.Debugw("restored call", "call_id", callID)
	}

	return nil
}

func (rs *RestoreService) restoreQuality(ctx context.Context, quality map[string][]interface{}, options RestoreOptions) error {
	if !options.RestoreQuality {
		return nil
	}

	for callIDStr, reports := range quality {
		for _, reportData := range reports {
			reportJSON, err := json.Marshal(reportData)
			if err != nil {
				return fmt.Errorf("failed to marshal quality report: %w", err)
			}

			var report domain.CallQualityReport
			if err := json.Unmarshal(reportJSON, &report); err != nil {
				return fmt.Errorf("failed to unmarshal quality report: %w", err)
			}

			if err := rs.qualityRepo.Save(ctx, &report); err != nil {
				return fmt.Errorf("failed to save quality report for call %s: %w", callIDStr, err)
			}
		}
	}

	return nil
}

// FindBackupByTime finds the latest backup at or before the given time.
func (rs *RestoreService) FindBackupByTime(ctx context.Context, targetTime time.Time) (string, error) {
	backups, err := rs.backupService.ListBackups(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list backups: %w", err)
	}

	var closestBackup string
	var closestTime time.Time
	var found bool

	for _, backupName := range backups {
		if len(backupName) < 22 {
			continue
		}

		timestampStr := backupName[7:22]
		timestamp, err := time.Parse("20060102-150405", timestampStr)
		if err != nil {
			continue
		}

		if !timestamp.After(targetTime) {
			if !found || timestamp.After(closestTime) {
				closestBackup = backupName
				closestTime = timestamp
				found = true
			}
		}
	}

	if !found {
		return "", fmt.Errorf("no backup found before or at target time: %v", targetTime)
	}

	return closestBackup, nil
}
