package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fathima-sithara/teamchat-service/internal/apperr"
	"github.com/fathima-sithara/teamchat-service/internal/models"
)

// StaleAfter is the default liveness window: a non-offline user whose
// last_seen_at is older than this gets swept to offline.
const StaleAfter = 5 * time.Minute

func validStatus(status models.PresenceStatus) bool {
	switch status {
	case models.PresenceOnline, models.PresenceAway, models.PresenceBusy, models.PresenceOffline:
		return true
	}
	return false
}

// SetPresence upserts the user's presence row and refreshes last_seen_at.
func (s *PresenceStore) SetPresence(ctx context.Context, userID string, status models.PresenceStatus, statusText *string) (*models.UserPresence, error) {
	if !validStatus(status) {
		return nil, apperr.ErrInvalidInput
	}
	now := time.Now()
	presence := models.UserPresence{
		UserID:     userID,
		Status:     status,
		StatusText: statusText,
		LastSeenAt: now,
		UpdatedAt:  now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "status_text", "last_seen_at", "updated_at"}),
	}).Create(&presence).Error
	if err != nil {
		return nil, err
	}
	return &presence, nil
}

func (s *PresenceStore) GoOnline(ctx context.Context, userID string) (*models.UserPresence, error) {
	return s.SetPresence(ctx, userID, models.PresenceOnline, nil)
}

func (s *PresenceStore) GoOffline(ctx context.Context, userID string) (*models.UserPresence, error) {
	return s.SetPresence(ctx, userID, models.PresenceOffline, nil)
}

// Heartbeat refreshes last_seen_at without touching the status.
func (s *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.UserPresence{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"last_seen_at": now, "updated_at": now}).Error
}

// GetPresence returns the user's presence row, or an offline default when
// none exists. Absence of a row is not an error state; everything else is.
func (s *PresenceStore) GetPresence(ctx context.Context, userID string) (*models.UserPresence, error) {
	var presence models.UserPresence
	err := s.db.WithContext(ctx).Take(&presence, "user_id = ?", userID).Error
	if err == nil {
		return &presence, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserPresence{UserID: userID, Status: models.PresenceOffline}, nil
	}
	return nil, err
}

// GetPresenceMany batch-looks-up statuses; ids without a row report offline.
func (s *PresenceStore) GetPresenceMany(ctx context.Context, userIDs []string) (map[string]models.PresenceStatus, error) {
	out := make(map[string]models.PresenceStatus, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []models.UserPresence
	err := s.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = row.Status
	}
	for _, id := range userIDs {
		if _, ok := out[id]; !ok {
			out[id] = models.PresenceOffline
		}
	}
	return out, nil
}

// CleanupStalePresence flips users who stopped reporting liveness to
// offline. Runs on a timer as a backstop for ungraceful disconnects the
// registry never observed. Returns how many rows flipped.
func (s *PresenceStore) CleanupStalePresence(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.staleAfter)
	res := s.db.WithContext(ctx).Model(&models.UserPresence{}).
		Where("status <> ? AND last_seen_at < ?", models.PresenceOffline, cutoff).
		Updates(map[string]interface{}{"status": models.PresenceOffline, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}
