package models

import "time"

// CommandKind identifies the action a pending command asks the desktop
// client to perform.
type CommandKind string

const (
	KindScreenshot     CommandKind = "screenshot"
	KindStartRecording CommandKind = "start-recording"
	KindStopRecording  CommandKind = "stop-recording"
)

// CommandState classifies a command's processing lifecycle.
type CommandState string

const (
	CommandPending CommandState = "pending"
	CommandDone    CommandState = "done"
)

// PendingCommand is a queued instruction for a desktop client. Commands are
// append-only: Processed flips false to true exactly once and rows are only
// removed by the retention purge.
type PendingCommand struct {
	RequestID string      `gorm:"primaryKey;size:36"`
	DesktopID string      `gorm:"size:36;index"`
	Kind      CommandKind `gorm:"size:24;not null"`
	Processed bool        `gorm:"default:false;index"`
	CreatedAt time.Time
}

// State returns the tagged processing state derived from Processed.
func (c *PendingCommand) State() CommandState {
	if c.Processed {
		return CommandDone
	}
	return CommandPending
}
