package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/hollandm/glimpse/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// --- GenerateCode tests ---

func TestGenerateCode_LengthAndAlphabet(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != CodeLength {
		t.Errorf("len = %d, want %d", len(code), CodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Errorf("code %q contains %q outside alphabet", code, r)
		}
	}
}

func TestGenerateCode_NoAmbiguousCharacters(t *testing.T) {
	for _, bad := range "01OIL" {
		if strings.ContainsRune(codeAlphabet, bad) {
			t.Errorf("alphabet contains ambiguous character %q", bad)
		}
	}
}

// --- NormalizeCode tests ---

func TestNormalizeCode(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc234", "ABC234"},
		{"  XY23ZQ  ", "XY23ZQ"},
		{"MixedC", "MIXEDC"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCode(tt.in); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Register tests ---

func TestRegister_CreatesUnpairedSession(t *testing.T) {
	db := openTestDB(t)

	sess, err := Register(db)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.ID == "" || sess.DesktopID == "" {
		t.Error("register should generate IDs")
	}
	if len(sess.PairingCode) != CodeLength {
		t.Errorf("pairing code %q, want %d characters", sess.PairingCode, CodeLength)
	}
	if sess.MobileConnected {
		t.Error("new session should not be mobile-connected")
	}
	if sess.State() != models.SessionUnpaired {
		t.Errorf("state = %q, want unpaired", sess.State())
	}
}

func TestRegister_UniqueCodesAmongAwaiting(t *testing.T) {
	db := openTestDB(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		sess, err := Register(db)
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if seen[sess.PairingCode] {
			t.Fatalf("duplicate pairing code %q among awaiting sessions", sess.PairingCode)
		}
		seen[sess.PairingCode] = true
	}
}

// --- Pair tests ---

func TestPair_FlipsMobileConnectedOnce(t *testing.T) {
	db := openTestDB(t)
	reg, err := Register(db)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sess, err := Pair(db, reg.PairingCode)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if sess.ID != reg.ID || sess.DesktopID != reg.DesktopID {
		t.Error("pair should return the registered session")
	}
	if !sess.MobileConnected {
		t.Error("pair should flip MobileConnected")
	}

	var stored models.Session
	if err := db.First(&stored, "id = ?", reg.ID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if !stored.MobileConnected {
		t.Error("MobileConnected not persisted")
	}
	if stored.State() != models.SessionPaired {
		t.Errorf("state = %q, want paired", stored.State())
	}
}

func TestPair_Idempotent(t *testing.T) {
	db := openTestDB(t)
	reg, _ := Register(db)

	first, err := Pair(db, reg.PairingCode)
	if err != nil {
		t.Fatalf("first pair: %v", err)
	}
	second, err := Pair(db, reg.PairingCode)
	if err != nil {
		t.Fatalf("second pair: %v", err)
	}
	if first.ID != second.ID {
		t.Error("repeat pair should bind the same session")
	}
}

func TestPair_NormalizesInput(t *testing.T) {
	db := openTestDB(t)
	reg, _ := Register(db)

	sess, err := Pair(db, "  "+strings.ToLower(reg.PairingCode)+" ")
	if err != nil {
		t.Fatalf("pair with messy input: %v", err)
	}
	if sess.ID != reg.ID {
		t.Error("normalized code should match")
	}
}

func TestPair_WrongCode(t *testing.T) {
	db := openTestDB(t)
	Register(db)

	_, err := Pair(db, "WRONGCODE")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var sess models.Session
	if err := db.First(&sess).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.MobileConnected {
		t.Error("failed pair must not flip MobileConnected")
	}
}

func TestPair_EmptyCode(t *testing.T) {
	db := openTestDB(t)
	if _, err := Pair(db, "   "); err == nil {
		t.Fatal("expected error for empty code")
	}
}

func TestPair_LegacyPrefixFallback(t *testing.T) {
	db := openTestDB(t)
	reg, _ := Register(db)

	legacy := reg.PairingCode[:legacyCodeLength]
	sess, err := Pair(db, legacy)
	if err != nil {
		t.Fatalf("legacy prefix pair: %v", err)
	}
	if sess.ID != reg.ID {
		t.Error("legacy prefix should match the stored longer code")
	}
}

func TestPair_NoPrefixFallbackForFullLengthCodes(t *testing.T) {
	db := openTestDB(t)
	Register(db)

	// A full-length wrong code must not prefix-match anything.
	_, err := Pair(db, "ZZZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// --- Lookup tests ---

func TestByDesktopID(t *testing.T) {
	db := openTestDB(t)
	reg, _ := Register(db)

	sess, err := ByDesktopID(db, reg.DesktopID)
	if err != nil {
		t.Fatalf("by desktop: %v", err)
	}
	if sess.ID != reg.ID {
		t.Error("wrong session returned")
	}

	if _, err := ByDesktopID(db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := ByDesktopID(db, ""); err == nil {
		t.Error("expected error for empty desktopID")
	}
}

func TestByID(t *testing.T) {
	db := openTestDB(t)
	reg, _ := Register(db)

	sess, err := ByID(db, reg.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if sess.DesktopID != reg.DesktopID {
		t.Error("wrong session returned")
	}
	if _, err := ByID(db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
