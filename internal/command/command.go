// Package command provides the pending-command mailbox for desktop clients.
package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hollandm/glimpse/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a request ID matches no command.
var ErrNotFound = errors.New("command: not found")

// ValidKind reports whether kind is a recognized command kind.
func ValidKind(kind models.CommandKind) bool {
	switch kind {
	case models.KindScreenshot, models.KindStartRecording, models.KindStopRecording:
		return true
	}
	return false
}

// Enqueue appends a new unprocessed command for a desktop. The queue is a
// durable mailbox: no liveness check is made against the target.
func Enqueue(db *gorm.DB, desktopID string, kind models.CommandKind) (*models.PendingCommand, error) {
	if desktopID == "" {
		return nil, fmt.Errorf("command: desktopID is required")
	}
	if !ValidKind(kind) {
		return nil, fmt.Errorf("command: unknown kind %q", kind)
	}

	cmd := models.PendingCommand{
		RequestID: uuid.NewString(),
		DesktopID: desktopID,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&cmd).Error; err != nil {
		return nil, fmt.Errorf("command: enqueue: %w", err)
	}
	return &cmd, nil
}

// Drain returns all unprocessed commands for a desktop, ordered by creation
// time. Pure read; safe to call at poll frequency.
func Drain(db *gorm.DB, desktopID string) ([]models.PendingCommand, error) {
	if desktopID == "" {
		return nil, fmt.Errorf("command: desktopID is required")
	}

	var cmds []models.PendingCommand
	if err := db.Where("desktop_id = ? AND processed = ?", desktopID, false).
		Order("created_at ASC").Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("command: drain %s: %w", desktopID, err)
	}
	return cmds, nil
}

// MarkProcessed transitions a command to processed. The transition is
// one-way; marking an already-processed command is a no-op.
func MarkProcessed(db *gorm.DB, requestID string) error {
	if requestID == "" {
		return fmt.Errorf("command: requestID is required")
	}
	result := db.Model(&models.PendingCommand{}).Where("request_id = ?", requestID).
		Update("processed", true)
	if result.Error != nil {
		return fmt.Errorf("command: mark processed %s: %w", requestID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish already-processed (no-op) from missing.
		var n int64
		db.Model(&models.PendingCommand{}).Where("request_id = ?", requestID).Count(&n)
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, requestID)
		}
	}
	return nil
}

// ClaimLatest returns the most recently created unprocessed command of the
// given kind for a desktop, or nil when none is pending. Used to attribute
// an upload that arrived without a request ID; recency is a heuristic, not
// an exact correlation.
func ClaimLatest(db *gorm.DB, desktopID string, kind models.CommandKind) (*models.PendingCommand, error) {
	if desktopID == "" {
		return nil, fmt.Errorf("command: desktopID is required")
	}

	var cmds []models.PendingCommand
	if err := db.Where("desktop_id = ? AND kind = ? AND processed = ?", desktopID, kind, false).
		Order("created_at DESC").Limit(1).Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("command: claim latest %s: %w", desktopID, err)
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	return &cmds[0], nil
}

// PurgeProcessed deletes processed commands created before the TTL cutoff
// and returns the number of rows removed. Unprocessed commands are never
// purged; a desktop that comes back online still drains them.
func PurgeProcessed(db *gorm.DB, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("command: ttl must be positive")
	}
	cutoff := time.Now().Add(-ttl)
	result := db.Where("processed = ? AND created_at < ?", true, cutoff).
		Delete(&models.PendingCommand{})
	if result.Error != nil {
		return 0, fmt.Errorf("command: purge processed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
