package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hollandm/glimpse/internal/client"
)

func TestAgentCmd_Help(t *testing.T) {
	out, err := runCLI(t, "agent", "--help")
	if err != nil {
		t.Fatalf("agent --help failed: %v", err)
	}
	for _, flag := range []string{"--config", "--state"} {
		if !strings.Contains(out, flag) {
			t.Errorf("expected help to mention %q flag, got: %s", flag, out)
		}
	}
}

func TestAgentCmd_MissingConfig(t *testing.T) {
	if _, err := runCLI(t, "agent", "--config", "/nonexistent/glimpse.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadOrRegister_FreshAndResumed(t *testing.T) {
	url := newTestRelay(t)
	relay := client.New(url)
	path := filepath.Join(t.TempDir(), "agent.json")
	ctx := context.Background()

	state, fresh, err := loadOrRegister(ctx, relay, path)
	if err != nil {
		t.Fatalf("first loadOrRegister: %v", err)
	}
	if !fresh {
		t.Error("first run should register a fresh desktop")
	}
	if state.DesktopID == "" || state.PairingCode == "" {
		t.Fatalf("state = %+v, want a full identity", state)
	}

	resumed, fresh, err := loadOrRegister(ctx, relay, path)
	if err != nil {
		t.Fatalf("second loadOrRegister: %v", err)
	}
	if fresh {
		t.Error("second run should reuse the state file")
	}
	if resumed.DesktopID != state.DesktopID {
		t.Errorf("resumed desktop %s, want %s", resumed.DesktopID, state.DesktopID)
	}
}

func TestLoadOrRegister_CorruptStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := loadOrRegister(context.Background(), client.New("http://unused"), path); err == nil {
		t.Error("expected error for corrupt state file")
	}
}
