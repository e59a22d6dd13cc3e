package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Media types attached to a chat message.
const (
	MediaScreenshot = "screenshot"
	MediaVideo      = "video"
)

// ChatMessage is a single turn in a paired session's conversation. Messages
// are ordered by CreatedAt ascending. MediaStorageID references the blob
// store; inline media payloads are never persisted here, only the reference.
type ChatMessage struct {
	ID             string `gorm:"primaryKey;size:36"`
	SessionID      string `gorm:"size:36;index"`
	Role           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text"`
	MediaType      string `gorm:"size:16"`
	MediaStorageID string `gorm:"size:128"`
	MediaURL       string `gorm:"size:2048"`

	// RequestID links an assistant message back to the pending command
	// whose capture produced it, making result lookup an exact join.
	RequestID string `gorm:"size:36;index"`

	CreatedAt time.Time
}
