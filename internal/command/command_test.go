package command

import (
	"errors"
	"testing"
	"time"

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
	if err := db.AutoMigrate(&models.PendingCommand{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// --- Validation tests ---

func TestEnqueue_MissingDesktopID(t *testing.T) {
	_, err := Enqueue(nil, "", models.KindScreenshot)
	if err == nil {
		t.Fatal("expected error for missing desktopID")
	}
	if got := err.Error(); got != "command: desktopID is required" {
		t.Errorf("error = %q", got)
	}
}

func TestEnqueue_UnknownKind(t *testing.T) {
	_, err := Enqueue(nil, "desk-1", models.CommandKind("reboot"))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDrain_MissingDesktopID(t *testing.T) {
	_, err := Drain(nil, "")
	if err == nil {
		t.Fatal("expected error for missing desktopID")
	}
}

func TestMarkProcessed_MissingRequestID(t *testing.T) {
	if err := MarkProcessed(nil, ""); err == nil {
		t.Fatal("expected error for missing requestID")
	}
}

// --- Queue behavior tests ---

func TestEnqueueDrain_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	cmd, err := Enqueue(db, "desk-1", models.KindScreenshot)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if cmd.RequestID == "" {
		t.Error("enqueue should assign a request ID")
	}
	if cmd.State() != models.CommandPending {
		t.Errorf("state = %q, want pending", cmd.State())
	}

	cmds, err := Drain(db, "desk-1")
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("drain returned %d commands, want 1", len(cmds))
	}
	if cmds[0].RequestID != cmd.RequestID || cmds[0].Kind != models.KindScreenshot {
		t.Errorf("drained %+v, want the enqueued command", cmds[0])
	}
}

func TestDrain_RepeatedUntilProcessed(t *testing.T) {
	db := openTestDB(t)
	cmd, _ := Enqueue(db, "desk-1", models.KindScreenshot)

	// Drain is a pure read: the command stays visible across calls.
	for i := 0; i < 3; i++ {
		cmds, err := Drain(db, "desk-1")
		if err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
		if len(cmds) != 1 {
			t.Fatalf("drain %d returned %d commands, want 1", i, len(cmds))
		}
	}

	if err := MarkProcessed(db, cmd.RequestID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	cmds, _ := Drain(db, "desk-1")
	if len(cmds) != 0 {
		t.Errorf("drain after processing returned %d commands, want 0", len(cmds))
	}
}

func TestDrain_OrderedByCreation(t *testing.T) {
	db := openTestDB(t)

	first, _ := Enqueue(db, "desk-1", models.KindStartRecording)
	db.Model(&models.PendingCommand{}).Where("request_id = ?", first.RequestID).
		Update("created_at", time.Now().Add(-time.Minute))
	second, _ := Enqueue(db, "desk-1", models.KindStopRecording)

	cmds, err := Drain(db, "desk-1")
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("drain returned %d commands, want 2", len(cmds))
	}
	if cmds[0].RequestID != first.RequestID || cmds[1].RequestID != second.RequestID {
		t.Error("commands not ordered by creation time")
	}
}

func TestDrain_ScopedToDesktop(t *testing.T) {
	db := openTestDB(t)
	Enqueue(db, "desk-1", models.KindScreenshot)
	Enqueue(db, "desk-2", models.KindScreenshot)

	cmds, _ := Drain(db, "desk-1")
	if len(cmds) != 1 {
		t.Errorf("drain returned %d commands, want 1 (desk-2 excluded)", len(cmds))
	}
}

func TestMarkProcessed_Idempotent(t *testing.T) {
	db := openTestDB(t)
	cmd, _ := Enqueue(db, "desk-1", models.KindScreenshot)

	if err := MarkProcessed(db, cmd.RequestID); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := MarkProcessed(db, cmd.RequestID); err != nil {
		t.Fatalf("second mark should be a no-op, got %v", err)
	}

	var stored models.PendingCommand
	db.First(&stored, "request_id = ?", cmd.RequestID)
	if !stored.Processed {
		t.Error("command should remain processed")
	}
	if stored.State() != models.CommandDone {
		t.Errorf("state = %q, want done", stored.State())
	}
}

func TestMarkProcessed_Missing(t *testing.T) {
	db := openTestDB(t)
	err := MarkProcessed(db, "no-such-request")
	if err == nil {
		t.Fatal("expected error for unknown requestID")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTwoPending_ProcessOneLeavesOne(t *testing.T) {
	db := openTestDB(t)
	a, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	b, _ := Enqueue(db, "desk-1", models.KindScreenshot)

	cmds, _ := Drain(db, "desk-1")
	if len(cmds) != 2 {
		t.Fatalf("drain returned %d commands, want 2", len(cmds))
	}

	if err := MarkProcessed(db, a.RequestID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	cmds, _ = Drain(db, "desk-1")
	if len(cmds) != 1 {
		t.Fatalf("drain returned %d commands, want 1", len(cmds))
	}
	if cmds[0].RequestID != b.RequestID {
		t.Error("the unprocessed command should remain visible")
	}
}

// --- ClaimLatest tests ---

func TestClaimLatest_MostRecentOfKind(t *testing.T) {
	db := openTestDB(t)

	older, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	db.Model(&models.PendingCommand{}).Where("request_id = ?", older.RequestID).
		Update("created_at", time.Now().Add(-time.Minute))
	newer, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	Enqueue(db, "desk-1", models.KindStopRecording)

	got, err := ClaimLatest(db, "desk-1", models.KindScreenshot)
	if err != nil {
		t.Fatalf("claim latest: %v", err)
	}
	if got == nil || got.RequestID != newer.RequestID {
		t.Errorf("claimed %+v, want most recent screenshot command", got)
	}
}

func TestClaimLatest_SkipsProcessed(t *testing.T) {
	db := openTestDB(t)
	cmd, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	MarkProcessed(db, cmd.RequestID)

	got, err := ClaimLatest(db, "desk-1", models.KindScreenshot)
	if err != nil {
		t.Fatalf("claim latest: %v", err)
	}
	if got != nil {
		t.Errorf("claimed %+v, want nil when none pending", got)
	}
}

// --- PurgeProcessed tests ---

func TestPurgeProcessed_RemovesOnlyOldProcessed(t *testing.T) {
	db := openTestDB(t)

	oldDone, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	MarkProcessed(db, oldDone.RequestID)
	db.Model(&models.PendingCommand{}).Where("request_id = ?", oldDone.RequestID).
		Update("created_at", time.Now().Add(-48*time.Hour))

	oldPending, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	db.Model(&models.PendingCommand{}).Where("request_id = ?", oldPending.RequestID).
		Update("created_at", time.Now().Add(-48*time.Hour))

	freshDone, _ := Enqueue(db, "desk-1", models.KindScreenshot)
	MarkProcessed(db, freshDone.RequestID)

	n, err := PurgeProcessed(db, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	var remaining []models.PendingCommand
	db.Find(&remaining)
	for _, c := range remaining {
		if c.RequestID == oldDone.RequestID {
			t.Error("old processed command should have been purged")
		}
	}
	if len(remaining) != 2 {
		t.Errorf("%d commands remain, want 2", len(remaining))
	}
}

func TestPurgeProcessed_InvalidTTL(t *testing.T) {
	if _, err := PurgeProcessed(nil, 0); err == nil {
		t.Fatal("expected error for zero TTL")
	}
}
