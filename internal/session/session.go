// Package session manages desktop registration and mobile pairing.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hollandm/glimpse/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no session matches a pairing code or desktop ID.
var ErrNotFound = errors.New("session: not found")

// CodeLength is the length of newly issued pairing codes. Older installs
// issued 4-character codes; Pair keeps a prefix fallback for them.
const CodeLength = 6

// legacyCodeLength is the code length issued before the bump to 6.
const legacyCodeLength = 4

// codeAlphabet omits characters that read ambiguously when typed from a
// phone (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateCode creates a random pairing code of CodeLength characters.
func GenerateCode() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate code: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// NormalizeCode canonicalizes a human-typed pairing code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Register creates a session for a fresh desktop install. The pairing code
// is unique among sessions still awaiting pairing; codes from paired or
// abandoned sessions may be reissued later.
func Register(db *gorm.DB) (*models.Session, error) {
	var code string
	for attempt := 0; ; attempt++ {
		c, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		var n int64
		if err := db.Model(&models.Session{}).
			Where("pairing_code = ? AND mobile_connected = ?", c, false).
			Count(&n).Error; err != nil {
			return nil, fmt.Errorf("session: check code: %w", err)
		}
		if n == 0 {
			code = c
			break
		}
		if attempt >= 10 {
			return nil, fmt.Errorf("session: could not find a free pairing code")
		}
	}

	sess := models.Session{
		ID:          uuid.NewString(),
		DesktopID:   uuid.NewString(),
		PairingCode: code,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(&sess).Error; err != nil {
		return nil, fmt.Errorf("session: register: %w", err)
	}
	return &sess, nil
}

// Pair looks up the session holding the submitted pairing code and marks it
// mobile-connected. Pairing again with the same code is a no-op, not an
// error; a session holds at most one mobile binding.
func Pair(db *gorm.DB, code string) (*models.Session, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("session: pairing code is required")
	}

	var sess models.Session
	err := db.Where("pairing_code = ?", code).Order("created_at DESC").First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && len(code) == legacyCodeLength {
		// Legacy clients truncate to 4 characters; fall back to a prefix
		// match against the stored longer code.
		err = db.Where("pairing_code LIKE ?", code+"%").Order("created_at DESC").First(&sess).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: pair: %w", err)
	}

	if !sess.MobileConnected {
		if err := db.Model(&models.Session{}).Where("id = ?", sess.ID).
			Update("mobile_connected", true).Error; err != nil {
			return nil, fmt.Errorf("session: mark paired: %w", err)
		}
		sess.MobileConnected = true
	}
	return &sess, nil
}

// ByDesktopID returns the session owned by a desktop install.
func ByDesktopID(db *gorm.DB, desktopID string) (*models.Session, error) {
	if desktopID == "" {
		return nil, fmt.Errorf("session: desktopID is required")
	}
	var sess models.Session
	err := db.Where("desktop_id = ?", desktopID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: by desktop %s: %w", desktopID, err)
	}
	return &sess, nil
}

// ByID returns the session with the given session ID.
func ByID(db *gorm.DB, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session: sessionID is required")
	}
	var sess models.Session
	err := db.Where("id = ?", sessionID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: by id %s: %w", sessionID, err)
	}
	return &sess, nil
}
