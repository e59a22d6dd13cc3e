package models

import "time"

// SessionState classifies a session's pairing lifecycle.
type SessionState string

const (
	SessionUnpaired SessionState = "unpaired"
	SessionPaired   SessionState = "paired"
)

// Session binds a desktop install to a pairing code and, once paired, to a
// mobile client. The session is never deleted; abandonment is implicit.
type Session struct {
	ID              string `gorm:"primaryKey;size:36"`
	DesktopID       string `gorm:"size:36;uniqueIndex"`
	PairingCode     string `gorm:"size:16;index"`
	MobileConnected bool   `gorm:"default:false"`
	CreatedAt       time.Time
}

// State returns the tagged pairing state derived from MobileConnected.
func (s *Session) State() SessionState {
	if s.MobileConnected {
		return SessionPaired
	}
	return SessionUnpaired
}
