// Package chat stores and queries the per-session conversation.
package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hollandm/glimpse/internal/models"
	"gorm.io/gorm"
)

// ErrNoResult is returned by ResultFor while the pipeline has not yet
// published an assistant message for a request. Callers poll; this is an
// expected transient state, not a fault.
var ErrNoResult = errors.New("chat: no result yet")

// AppendOpts holds optional attributes for an appended message.
type AppendOpts struct {
	MediaType      string
	MediaStorageID string
	MediaURL       string
	RequestID      string
}

// Append stores a message in a session's conversation and returns it.
func Append(db *gorm.DB, sessionID, role, content string, opts AppendOpts) (*models.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("chat: sessionID is required")
	}
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, fmt.Errorf("chat: unknown role %q", role)
	}

	msg := models.ChatMessage{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Role:           role,
		Content:        content,
		MediaType:      opts.MediaType,
		MediaStorageID: opts.MediaStorageID,
		MediaURL:       opts.MediaURL,
		RequestID:      opts.RequestID,
		CreatedAt:      time.Now(),
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("chat: append: %w", err)
	}
	return &msg, nil
}

// History returns a session's messages ordered by creation time ascending.
func History(db *gorm.DB, sessionID string) ([]models.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("chat: sessionID is required")
	}
	var msgs []models.ChatMessage
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: history %s: %w", sessionID, err)
	}
	return msgs, nil
}

// LatestUnanswered returns the most recent user message in a session that
// carries no media and has no assistant reply after it, or nil when every
// user turn is answered. This is the recency fallback used to correlate an
// upload that arrived without a request ID.
func LatestUnanswered(db *gorm.DB, sessionID string) (*models.ChatMessage, error) {
	msgs, err := History(db, sessionID)
	if err != nil {
		return nil, err
	}

	var candidate *models.ChatMessage
	for i := range msgs {
		switch msgs[i].Role {
		case models.RoleUser:
			if msgs[i].MediaType == "" {
				candidate = &msgs[i]
			}
		case models.RoleAssistant:
			candidate = nil
		}
	}
	return candidate, nil
}

// ResultFor returns the assistant message published for a request, or
// ErrNoResult while the pipeline has not produced one. The result is
// terminal: repeated calls after publication return the same message.
func ResultFor(db *gorm.DB, requestID string) (*models.ChatMessage, error) {
	if requestID == "" {
		return nil, fmt.Errorf("chat: requestID is required")
	}
	var msg models.ChatMessage
	err := db.Where("request_id = ? AND role = ?", requestID, models.RoleAssistant).
		Order("created_at ASC").First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("chat: result for %s: %w", requestID, err)
	}
	return &msg, nil
}

// SetStorageID fills in the blob-store reference on a message once a
// background upload completes. MediaType set with an absent storage ID is a
// legal transient state while the upload is in flight.
func SetStorageID(db *gorm.DB, messageID, storageID string) error {
	if messageID == "" {
		return fmt.Errorf("chat: messageID is required")
	}
	result := db.Model(&models.ChatMessage{}).Where("id = ?", messageID).
		Update("media_storage_id", storageID)
	if result.Error != nil {
		return fmt.Errorf("chat: set storage id %s: %w", messageID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("chat: message not found: %s", messageID)
	}
	return nil
}
